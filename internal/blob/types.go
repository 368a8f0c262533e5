package blob

import (
	"time"

	"github.com/koustreak/StorRi/internal/conditions"
)

// ContainerInfo describes a container in a listing.
type ContainerInfo struct {
	// Name is the container name.
	Name string

	// ETag is the container's entity tag.
	ETag string

	// LastModified is when the container was last written.
	LastModified time.Time
}

// BlobInfo describes a single entry in a blob listing.
type BlobInfo struct {
	// Name is the full blob key within the container (e.g. "images/photo.jpg").
	// For prefix entries it is the common prefix including the delimiter.
	Name string

	// IsPrefix is true when the entry is a virtual directory (common
	// prefix) produced by a hierarchical listing, not a stored blob.
	IsPrefix bool

	// Size is the byte size of the blob. 0 for prefix entries.
	Size int64

	// ContentType is the MIME type.
	ContentType string

	// ETag is the blob's entity tag.
	ETag string

	// ContentMD5 is the base64 MD5 of the content, when the service has one.
	ContentMD5 string

	// LastModified is when the blob was last written.
	LastModified time.Time
}

// Properties is the full metadata of one blob, as returned by GetProperties
// and by Download.
type Properties struct {
	ETag          string
	LastModified  time.Time
	ContentLength int64 // total blob size, not the range length
	ContentType   string
	ContentMD5    string // base64, empty when the service has none
	Metadata      map[string]string
}

// ListContainersOptions controls ListContainers.
type ListContainersOptions struct {
	// Prefix restricts results to containers whose name starts with it.
	Prefix string

	// MaxResults caps the page size. 0 uses the service default.
	MaxResults int

	// Marker resumes the listing from a previously persisted continuation
	// marker. "" starts from the beginning.
	Marker string
}

// ListBlobsOptions controls ListBlobs and ListBlobsHierarchy.
type ListBlobsOptions struct {
	// Prefix restricts results to blobs whose key starts with it.
	Prefix string

	// MaxResults caps the page size. 0 uses the service default.
	MaxResults int

	// Marker resumes the listing from a previously persisted continuation
	// marker. "" starts from the beginning.
	Marker string
}

// UploadOptions controls Upload.
type UploadOptions struct {
	ContentType string
	Metadata    map[string]string
	Conditions  *conditions.RequestConditions
}

// UploadResult reports the outcome of an upload.
type UploadResult struct {
	ETag         string
	LastModified time.Time
}

// AccessOptions carries conditions for simple operations (Delete,
// GetProperties, SetMetadata).
type AccessOptions struct {
	Conditions *conditions.RequestConditions
}
