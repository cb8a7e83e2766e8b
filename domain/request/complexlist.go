package request

import (
	"strconv"

	"github.com/dominhhai/mws-sdk/domain/query"
)

// ComplexList is a repeated structured parameter. Each member is flattened
// as Prefix.<index>.<field>, index starting at 1.
type ComplexList struct {
	Prefix  string
	Members []map[string]string
}

// NewComplexList creates an empty list under prefix, for example
// "DestinationAddressList.member" or "Items.member".
func NewComplexList(prefix string) *ComplexList {
	return &ComplexList{Prefix: prefix}
}

// Add appends a member and returns the list for chaining.
func (c *ComplexList) Add(member map[string]string) *ComplexList {
	m := make(map[string]string, len(member))
	for k, v := range member {
		m[k] = v
	}
	c.Members = append(c.Members, m)
	return c
}

// Len returns the number of members.
func (c *ComplexList) Len() int { return len(c.Members) }

// AppendTo writes every member field into q.
func (c *ComplexList) AppendTo(q query.Values) query.Values {
	for i, m := range c.Members {
		base := c.Prefix + "." + strconv.Itoa(i+1) + "."
		for f, v := range m {
			q[base+f] = v
		}
	}
	return q
}

// Clone returns a deep copy.
func (c *ComplexList) Clone() *ComplexList {
	out := &ComplexList{Prefix: c.Prefix, Members: make([]map[string]string, 0, len(c.Members))}
	for _, m := range c.Members {
		out.Add(m)
	}
	return out
}
