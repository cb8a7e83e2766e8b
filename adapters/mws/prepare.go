package mws

import (
	"crypto/md5"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/dominhhai/mws-sdk/domain/param"
	"github.com/dominhhai/mws-sdk/domain/query"
	"github.com/dominhhai/mws-sdk/domain/request"
	"github.com/dominhhai/mws-sdk/domain/signature"
)

// Wire field names injected by the client.
const (
	FieldAction      = "Action"
	FieldVersion     = "Version"
	FieldTimestamp   = "Timestamp"
	FieldAccessKeyID = "AWSAccessKeyId"
	FieldAuthToken   = "MWSAuthToken"
	FieldMerchant    = "Merchant"
	FieldSellerID    = "SellerId"

	// Pseudo fields of upload actions, never sent as parameters.
	FieldBody   = "_BODY_"
	FieldFormat = "_FORMAT_"
)

// ContentTypeForm is sent for every request, upload bodies included.
const ContentTypeForm = "application/x-www-form-urlencoded"

const (
	headerContentMD5  = "Content-MD5"
	headerContentType = "Content-Type"
	headerUserAgent   = "User-Agent"
)

// Prepared is a fully built, signed request that has not been sent.
type Prepared struct {
	Method string
	// URL includes the signed query string for upload actions.
	URL    string
	Header http.Header
	Body   []byte
	// Query is the signed key set, wherever it travels.
	Query        query.Values
	StringToSign string
}

// Size is the number of payload bytes sent: the body plus, for upload
// actions, the query string.
func (p *Prepared) Size() int64 {
	n := int64(len(p.Body))
	if i := strings.IndexByte(p.URL, '?'); i >= 0 {
		n += int64(len(p.URL) - i - 1)
	}
	return n
}

// Prepare builds and signs the request for action without sending it. q is
// not modified. The Timestamp is taken from the client's clock.
func (c *Client) Prepare(d request.Descriptor, action string, q query.Values) (*Prepared, error) {
	d = d.WithDefaults()
	if err := c.precheck(d, q); err != nil {
		return nil, err
	}
	q = q.Clone()

	p := &Prepared{
		Method: signature.HTTPMethod,
		Header: make(http.Header),
	}
	p.Header.Set(headerUserAgent, c.userAgent)
	p.Header.Set(headerContentType, ContentTypeForm)

	if d.Upload {
		p.Body = []byte(q[FieldBody])
		sum := md5.Sum(p.Body)
		p.Header.Set(headerContentMD5, base64.StdEncoding.EncodeToString(sum[:]))
		delete(q, FieldBody)
		delete(q, FieldFormat)
	}

	q[FieldAction] = action
	q[FieldVersion] = d.Version
	q[FieldTimestamp] = c.clock.Now().UTC().Format(param.TimestampLayout)
	q[FieldAccessKeyID] = c.accessKeyID
	if token := c.AuthToken(); token != "" {
		q[FieldAuthToken] = token
	}
	if d.Legacy {
		q[FieldMerchant] = c.merchantID
	} else {
		q[FieldSellerID] = c.merchantID
	}

	p.Query = c.signer.Sign(d.Path, q)
	unsigned := p.Query.Clone()
	delete(unsigned, signature.KeySignature)
	p.StringToSign = signature.StringToSign(c.host, d.Path, unsigned)

	p.URL = c.scheme + "://" + c.host + d.Path
	if d.Upload {
		p.URL += "?" + p.Query.Encode()
	} else {
		p.Body = []byte(p.Query.Encode())
	}
	return p, nil
}

// precheck reports the errors no attempt can fix: missing credentials, and
// an upload action without a body.
func (c *Client) precheck(d request.Descriptor, q query.Values) error {
	var missing []string
	if c.accessKeyID == "" {
		missing = append(missing, "accessKeyId")
	}
	if c.secretAccessKey == "" {
		missing = append(missing, "secretAccessKey")
	}
	if c.merchantID == "" {
		missing = append(missing, "merchantId")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	if _, ok := q[FieldBody]; d.Upload && !ok {
		return &request.ValidationError{Missing: []string{FieldBody}}
	}
	return nil
}
