package transport

import "strings"

// Credential injects authorization onto a request before it is sent. The
// pipeline treats credential material as opaque: it never inspects or
// derives key material, it only attaches what it is given. Request signing
// belongs to whoever minted the credential.
type Credential interface {
	Apply(req *Request) error
}

// AnonymousCredential sends requests unauthenticated. Useful against public
// containers and local emulators.
type AnonymousCredential struct{}

func (AnonymousCredential) Apply(*Request) error { return nil }

// SASCredential appends a pre-signed shared-access-signature query string
// to every request URL.
type SASCredential struct {
	token string
}

// NewSASCredential wraps a pre-signed SAS token. A leading "?" is accepted
// and stripped.
func NewSASCredential(token string) SASCredential {
	return SASCredential{token: strings.TrimPrefix(token, "?")}
}

func (c SASCredential) Apply(req *Request) error {
	if c.token == "" {
		return nil
	}
	if req.URL.RawQuery == "" {
		req.URL.RawQuery = c.token
	} else {
		req.URL.RawQuery += "&" + c.token
	}
	return nil
}

// HeaderCredential attaches precomputed authorization headers verbatim,
// e.g. an Authorization header produced by an external signer.
type HeaderCredential map[string]string

func (c HeaderCredential) Apply(req *Request) error {
	for k, v := range c {
		req.Header.Set(k, v)
	}
	return nil
}
