package requests

// requests is a library for making JSON requests to HTTP APIs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Request describes a JSON API call. Client defaults to http.DefaultClient.
type Request struct {
	Client  *http.Client
	Method  string
	URL     string
	Headers map[string]string
	Body    any
}

// Send the request and decode the JSON response into T.
// Any status code of 300 or above is an error, and the error message includes the response body.
func RequestJSON[T any](ctx context.Context, r Request) (response *T, err error) {
	bodyB, err := json.Marshal(r.Body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, bytes.NewReader(bodyB))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%v. %v", resp.Status, string(msg))
	}
	var responseObj T
	if err := json.NewDecoder(resp.Body).Decode(&responseObj); err != nil {
		return nil, fmt.Errorf("%v. %w", resp.Status, err)
	}
	response = &responseObj
	return
}
