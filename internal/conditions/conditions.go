// Package conditions builds server-side precondition headers from a
// RequestConditions value. Every read and mutation in the blob client
// accepts a *RequestConditions; the server arbitrates the conditions and
// answers 412 when one is not met.
package conditions

import (
	"net/http"
	"time"
)

// Header names understood by the storage service.
const (
	headerIfMatch           = "If-Match"
	headerIfNoneMatch       = "If-None-Match"
	headerIfModifiedSince   = "If-Modified-Since"
	headerIfUnmodifiedSince = "If-Unmodified-Since"
	headerLeaseID           = "x-ms-lease-id"
	headerIfTags            = "x-ms-if-tags"
)

// ETagAny matches any ETag. Use it as IfMatch to require existence, or as
// IfNoneMatch to require that the resource does not exist yet.
const ETagAny = "*"

// RequestConditions carries optional access conditions for one request.
// All fields are optional; zero values send nothing. The struct is a plain
// data carrier — construct it with named fields, it has no builder.
type RequestConditions struct {
	// IfMatch makes the request succeed only when the resource's current
	// ETag equals this value.
	IfMatch string

	// IfNoneMatch makes the request succeed only when the resource's
	// current ETag differs from this value.
	//
	// Setting both IfMatch and IfNoneMatch sends both headers; the client
	// does not arbitrate the combination, the server does.
	IfNoneMatch string

	// IfModifiedSince makes the request succeed only when the resource was
	// modified after this instant.
	IfModifiedSince time.Time

	// IfUnmodifiedSince makes the request succeed only when the resource
	// was not modified after this instant.
	IfUnmodifiedSince time.Time

	// LeaseID must match the resource's active lease. Empty means "no
	// lease required", not "clear lease".
	LeaseID string

	// TagsFilter is a tag query expression evaluated by the server. It is
	// passed through verbatim with no client-side validation.
	TagsFilter string
}

// Apply writes the non-zero conditions as headers onto h. It is a pure
// function of c: no I/O, no mutation of c, nil-safe.
func (c *RequestConditions) Apply(h http.Header) {
	if c == nil {
		return
	}
	if c.IfMatch != "" {
		h.Set(headerIfMatch, c.IfMatch)
	}
	if c.IfNoneMatch != "" {
		h.Set(headerIfNoneMatch, c.IfNoneMatch)
	}
	if !c.IfModifiedSince.IsZero() {
		h.Set(headerIfModifiedSince, c.IfModifiedSince.UTC().Format(http.TimeFormat))
	}
	if !c.IfUnmodifiedSince.IsZero() {
		h.Set(headerIfUnmodifiedSince, c.IfUnmodifiedSince.UTC().Format(http.TimeFormat))
	}
	if c.LeaseID != "" {
		h.Set(headerLeaseID, c.LeaseID)
	}
	if c.TagsFilter != "" {
		h.Set(headerIfTags, c.TagsFilter)
	}
}
