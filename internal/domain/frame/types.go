// Package frame defines the wire schema exchanged over the gateway/agent
// duplex channel and the codec that translates HTTP bodies to and from it.
package frame

import "encoding/json"

// Type discriminates the two frame kinds carried over the duplex channel.
type Type string

const (
	// TypeProxyRequest is sent gateway -> agent for each proxied HTTP request.
	TypeProxyRequest Type = "proxy_request"
	// TypeProxyResponse is sent agent -> gateway in reply to a proxy_request.
	TypeProxyResponse Type = "proxy_response"
)

// Header is a single wire-format header entry. Frames carry headers as an
// ordered list of pairs rather than a map so that repeated header names
// survive the round trip.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered collection of wire-format header entries.
type Headers []Header

// Values returns every value recorded under the given header name,
// matched case-insensitively as HTTP requires.
func (h Headers) Values(name string) []string {
	var out []string
	for _, kv := range h {
		if equalFold(kv.Name, name) {
			out = append(out, kv.Value)
		}
	}
	return out
}

// Add appends a header entry.
func (h Headers) Add(name, value string) Headers {
	return append(h, Header{Name: name, Value: value})
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// RequestEnvelope is the gateway->agent wire frame for a proxied HTTP request.
type RequestEnvelope struct {
	Type         Type    `json:"type"`
	ID           uint64  `json:"id"`
	Method       string  `json:"method"`
	URI          string  `json:"uri"`
	Headers      Headers `json:"headers"`
	BodyB64      string  `json:"body_b64"`
	IsCompressed bool    `json:"is_compressed"`
}

// ResponseEnvelope is the agent->gateway wire frame replying to a RequestEnvelope.
type ResponseEnvelope struct {
	Type         Type    `json:"type"`
	ID           uint64  `json:"id"`
	Status       int     `json:"status"`
	Headers      Headers `json:"headers"`
	BodyB64      string  `json:"body_b64"`
	IsCompressed bool    `json:"is_compressed"`
}

// MarshalJSON for Headers encodes each entry as a two-element array,
// matching the wire schema's `[["k","v"], ...]` shape.
func (h Headers) MarshalJSON() ([]byte, error) {
	pairs := make([][2]string, len(h))
	for i, kv := range h {
		pairs[i] = [2]string{kv.Name, kv.Value}
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON for Headers decodes the `[["k","v"], ...]` wire shape.
func (h *Headers) UnmarshalJSON(data []byte) error {
	var pairs [][2]string
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	out := make(Headers, len(pairs))
	for i, p := range pairs {
		out[i] = Header{Name: p[0], Value: p[1]}
	}
	*h = out
	return nil
}
