// Package reply decodes service responses.
//
// XML bodies are turned into a Tree using the arrays-of-one convention:
//
//	<GetOrderResponse xmlns="...">
//	  <GetOrderResult><Orders><Order>...</Order></Orders></GetOrderResult>
//	</GetOrderResponse>
//
// becomes
//
//	Tree{"GetOrderResponse": Tree{
//	    "$":              map[string]string{"xmlns": "..."},
//	    "GetOrderResult": []any{Tree{"Orders": []any{...}}},
//	}}
//
// Every child element is a one-or-more element []any under its qualified
// tag, attributes sit under "$", text mixed with children under "_", and a
// leaf element without attributes is its text string.
package reply

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// XMLPrefix marks a body that is decoded as XML.
const XMLPrefix = "<?xml"

// Reserved Tree keys.
const (
	AttrKey = "$"
	TextKey = "_"
)

// Tree is a decoded XML element.
type Tree map[string]any

// Reply is a decoded response body.
type Reply struct {
	// Raw is the body text exactly as received.
	Raw string
	// Tree is the decoded document, nil for non-XML bodies.
	Tree Tree
	// StatusCode is the HTTP status, set by the client that received it.
	StatusCode int
}

// IsXML reports whether the body was decoded as XML.
func (r *Reply) IsXML() bool { return r.Tree != nil }

// ParseError is returned when an XML body cannot be parsed.
type ParseError struct {
	Code    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse response: %s: %s (line %d)", e.Code, e.Message, e.Line)
	}
	return fmt.Sprintf("parse response: %s: %s", e.Code, e.Message)
}

// Decode parses body. Bodies not starting with "<?xml" are returned
// verbatim in Raw.
func Decode(body []byte) (*Reply, error) {
	r := &Reply{Raw: string(body)}
	if !bytes.HasPrefix(body, []byte(XMLPrefix)) {
		return r, nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, toParseError(err)
	}
	root := doc.Root()
	if root == nil {
		return nil, &ParseError{Code: "NoRootElement", Message: "document has no root element"}
	}

	r.Tree = Tree{root.FullTag(): decodeElement(root)}
	return r, nil
}

func toParseError(err error) *ParseError {
	var syn *xml.SyntaxError
	if errors.As(err, &syn) {
		return &ParseError{Code: "SyntaxError", Line: syn.Line, Message: syn.Msg}
	}
	return &ParseError{Code: "ReadError", Message: err.Error()}
}

func decodeElement(e *etree.Element) any {
	children := e.ChildElements()
	text := charData(e)

	if len(children) == 0 && len(e.Attr) == 0 {
		return text
	}

	t := Tree{}
	if len(e.Attr) > 0 {
		attrs := make(map[string]string, len(e.Attr))
		for _, a := range e.Attr {
			attrs[a.FullKey()] = a.Value
		}
		t[AttrKey] = attrs
	}
	for _, c := range children {
		tag := c.FullTag()
		list, _ := t[tag].([]any)
		t[tag] = append(list, decodeElement(c))
	}
	if len(children) == 0 {
		t[TextKey] = text
	} else if s := strings.TrimSpace(text); s != "" {
		t[TextKey] = s
	}
	return t
}

// charData joins the element's own text and CDATA tokens.
func charData(e *etree.Element) string {
	var b strings.Builder
	for _, tok := range e.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			b.WriteString(cd.Data)
		}
	}
	return b.String()
}

// Find walks path from t, taking the first element of every list on the way.
func (t Tree) Find(path ...string) (any, bool) {
	var cur any = t
	for _, seg := range path {
		node, ok := cur.(Tree)
		if !ok {
			return nil, false
		}
		next, ok := node[seg]
		if !ok {
			return nil, false
		}
		if list, isList := next.([]any); isList {
			if len(list) == 0 {
				return nil, false
			}
			next = list[0]
		}
		cur = next
	}
	return cur, true
}

// All returns every element stored under the last path segment.
func (t Tree) All(path ...string) []any {
	if len(path) == 0 {
		return nil
	}
	parent, ok := t.Find(path[:len(path)-1]...)
	if !ok {
		return nil
	}
	node, ok := parent.(Tree)
	if !ok {
		return nil
	}
	switch v := node[path[len(path)-1]].(type) {
	case []any:
		return v
	case nil:
		return nil
	default:
		return []any{v}
	}
}

// Text returns the text at path, or "" if there is none.
func (t Tree) Text(path ...string) string {
	v, ok := t.Find(path...)
	if !ok {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case Tree:
		s, _ := x[TextKey].(string)
		return s
	}
	return ""
}

// Attr returns an attribute of the element at path.
func (t Tree) Attr(name string, path ...string) string {
	v, ok := t.Find(path...)
	if !ok {
		return ""
	}
	node, ok := v.(Tree)
	if !ok {
		return ""
	}
	attrs, _ := node[AttrKey].(map[string]string)
	return attrs[name]
}
