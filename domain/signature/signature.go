// Package signature implements the vendor's HmacSHA256 version 2 request signing.
//
// Signing is a PURE operation: the same host, path, query content and secret
// always produce the same signature. Timestamps are supplied by the caller.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/dominhhai/mws-sdk/domain/query"
)

// Query keys written by the signer.
const (
	KeyMethod    = "SignatureMethod"
	KeyVersion   = "SignatureVersion"
	KeySignature = "Signature"

	Method  = "HmacSHA256"
	Version = "2"

	// HTTPMethod is the only verb the service accepts for signed calls.
	HTTPMethod = "POST"
)

// Signer signs queries for one host with one secret.
type Signer struct {
	host   string
	secret []byte
}

// NewSigner creates a signer.
func NewSigner(host, secret string) *Signer {
	return &Signer{host: host, secret: []byte(secret)}
}

// Host returns the host the canonical string is built for.
func (s *Signer) Host() string { return s.host }

// Sign returns a copy of q with SignatureMethod, SignatureVersion and
// Signature added. Any Signature already present is replaced.
func (s *Signer) Sign(path string, q query.Values) query.Values {
	out := q.Clone()
	delete(out, KeySignature)
	out[KeyMethod] = Method
	out[KeyVersion] = Version

	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(StringToSign(s.host, path, out)))
	out[KeySignature] = base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return out
}

// Verify reports whether q carries a valid signature for path.
func (s *Signer) Verify(path string, q query.Values) bool {
	got, ok := q[KeySignature]
	if !ok {
		return false
	}
	want := s.Sign(path, q)[KeySignature]
	return hmac.Equal([]byte(got), []byte(want))
}

// StringToSign builds the canonical string: method, host, path and the
// byte-order sorted, RFC 3986 encoded query, separated by newlines.
func StringToSign(host, path string, q query.Values) string {
	if path == "" {
		path = "/"
	}
	return strings.Join([]string{HTTPMethod, host, path, q.Encode()}, "\n")
}
