package agent

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/0xReLogic/Tunly/internal/domain/frame"
)

var knownMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodConnect: {},
	http.MethodOptions: {},
	http.MethodTrace:   {},
}

// dispatchLocal joins the configured local base with the envelope's path,
// strips hop-by-hop headers, rewrites Host to "localhost:<port>", issues
// the request, and translates the result (or failure) into a response
// envelope.
func (c *Client) dispatchLocal(req frame.RequestEnvelope) frame.ResponseEnvelope {
	host, port, err := net.SplitHostPort(localOrDefault(c.Local))
	if err != nil {
		return upstreamErrorResponse(req.ID, err)
	}

	body, err := frame.DecodeBody(req.BodyB64, req.IsCompressed)
	if err != nil {
		return upstreamErrorResponse(req.ID, err)
	}

	method := req.Method
	if _, ok := knownMethods[method]; !ok {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	upstreamURL := fmt.Sprintf("http://%s:%s%s", host, port, req.URI)
	httpReq, err := http.NewRequest(method, upstreamURL, bodyReader)
	if err != nil {
		return upstreamErrorResponse(req.ID, err)
	}
	for _, kv := range frame.FilterHopByHop(req.Headers) {
		httpReq.Header.Add(kv.Name, kv.Value)
	}
	httpReq.Host = fmt.Sprintf("localhost:%s", port)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return upstreamErrorResponse(req.ID, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return upstreamErrorResponse(req.ID, err)
	}

	var headers frame.Headers
	for name, values := range resp.Header {
		for _, v := range values {
			headers = headers.Add(name, v)
		}
	}
	headers = frame.FilterHopByHop(headers)

	bodyB64, isCompressed := frame.EncodeBody(respBody)
	return frame.ResponseEnvelope{
		Type:         frame.TypeProxyResponse,
		ID:           req.ID,
		Status:       resp.StatusCode,
		Headers:      headers,
		BodyB64:      bodyB64,
		IsCompressed: isCompressed,
	}
}

func localOrDefault(local string) string {
	if local == "" {
		return "127.0.0.1:80"
	}
	return local
}

// upstreamErrorResponse builds a 502 envelope for any dispatch failure
// (request build, upstream call, or body decode).
func upstreamErrorResponse(id uint64, cause error) frame.ResponseEnvelope {
	body := fmt.Sprintf("upstream error: %s", cause.Error())
	return frame.ResponseEnvelope{
		Type:    frame.TypeProxyResponse,
		ID:      id,
		Status:  http.StatusBadGateway,
		Headers: frame.Headers{}.Add("Content-Type", "text/plain"),
		BodyB64: base64.StdEncoding.EncodeToString([]byte(body)),
	}
}
