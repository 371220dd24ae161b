package binance

import (
	"net/url"
	"strings"
)

// Params is an insertion-ordered parameter list. Binance verifies the
// HMAC signature against the exact query string it receives, so the
// encoding used for signing must match the transmitted encoding
// byte-for-byte. A plain map would randomize ordering between the two.
type Params struct {
	keys   []string
	values map[string]string
}

// NewParams creates an empty parameter list.
func NewParams() *Params {
	return &Params{values: make(map[string]string)}
}

// Set adds or replaces a parameter, keeping first-insertion order.
func (p *Params) Set(key, value string) *Params {
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
	return p
}

// SetOptional adds the parameter only when value is non-empty.
func (p *Params) SetOptional(key, value string) *Params {
	if value != "" {
		p.Set(key, value)
	}
	return p
}

// Get returns the value for key, or "".
func (p *Params) Get(key string) string {
	return p.values[key]
}

// Len returns the number of parameters.
func (p *Params) Len() int {
	return len(p.keys)
}

// Clone returns an independent copy preserving order.
func (p *Params) Clone() *Params {
	c := NewParams()
	for _, k := range p.keys {
		c.Set(k, p.values[k])
	}
	return c
}

// Encode renders the canonical query string in insertion order.
func (p *Params) Encode() string {
	if p == nil || len(p.keys) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, k := range p.keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.values[k]))
	}
	return sb.String()
}
