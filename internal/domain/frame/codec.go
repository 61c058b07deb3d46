package frame

import (
	"bytes"
	"encoding/base64"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
)

// compressionThreshold is the raw body length below which compression is
// never attempted.
const compressionThreshold = 1024

// hopByHop is the set of header names stripped from captured request and
// response headers in both directions, matched case-insensitively.
var hopByHop = map[string]struct{}{
	"connection":          {},
	"keep-alive":          {},
	"proxy-authenticate":  {},
	"proxy-authorization": {},
	"te":                  {},
	"trailers":            {},
	"transfer-encoding":   {},
	"upgrade":             {},
}

// IsHopByHop reports whether name (any case) is a hop-by-hop header.
func IsHopByHop(name string) bool {
	_, ok := hopByHop[strings.ToLower(name)]
	return ok
}

// FilterHopByHop returns a copy of in with hop-by-hop headers removed.
// Filtering is idempotent: applying it twice is the same as applying it once.
func FilterHopByHop(in Headers) Headers {
	out := make(Headers, 0, len(in))
	for _, kv := range in {
		if IsHopByHop(kv.Name) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// EncodeBody applies the wire compression policy: bodies shorter than
// compressionThreshold are transmitted raw; longer bodies are deflated
// and the deflated form is used only if strictly shorter than the raw
// form. The returned bool is the frame's is_compressed flag.
func EncodeBody(raw []byte) (bodyB64 string, isCompressed bool) {
	if len(raw) < compressionThreshold {
		return base64.StdEncoding.EncodeToString(raw), false
	}

	compressed, err := deflate(raw)
	if err == nil && len(compressed) < len(raw) {
		return base64.StdEncoding.EncodeToString(compressed), true
	}
	return base64.StdEncoding.EncodeToString(raw), false
}

// DecodeBody reverses EncodeBody. Base64 decode failure is returned as an
// error; inflate failure is best-effort and falls back to the raw decoded
// bytes rather than erroring.
func DecodeBody(bodyB64 string, isCompressed bool) ([]byte, error) {
	if bodyB64 == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(bodyB64)
	if err != nil {
		return nil, err
	}
	if !isCompressed {
		return raw, nil
	}
	inflated, err := inflate(raw)
	if err != nil {
		return raw, nil
	}
	return inflated, nil
}

func deflate(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflate(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}
