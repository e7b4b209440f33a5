package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxHTTPBody caps how much of a responder reply is read.
const maxHTTPBody = 1 << 20

// HTTPTransport posts the request JSON to a responder service.
type HTTPTransport struct {
	url    string
	client *http.Client
}

// NewHTTPTransport returns a transport posting to url. A nil client uses a default one;
// the bridge deadline bounds each request.
func NewHTTPTransport(url string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{url: url, client: client}
}

// Name implements Transport.
func (t *HTTPTransport) Name() string { return "http" }

// Call implements Transport.
func (t *HTTPTransport) Call(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, &Error{Kind: KindTransportStart, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Response{}, &Error{Kind: KindTransportStart, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPBody))
	if err != nil {
		return Response{}, &Error{Kind: KindTransportStart, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, &Error{Kind: KindNonZeroExit, ExitCode: resp.StatusCode, Diagnostic: clip(string(body))}
	}
	return DecodeResponse(body)
}
