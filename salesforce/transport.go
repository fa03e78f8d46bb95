package salesforce

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is a fully read http response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport performs a single request against salesforce, it does not interpret the status code
type Transport interface {
	Perform(ctx context.Context, method, url string, header http.Header, body []byte) (*Response, error)
}

// HttpTransport is the default Transport backed by a HttpClient
type HttpTransport struct {
	client HttpClient
}

func NewHttpTransport(client HttpClient) *HttpTransport {
	return &HttpTransport{client: client}
}

func (t HttpTransport) Perform(ctx context.Context, method, url string, header http.Header, body []byte) (*Response, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("unable to create salesforce request: %w", err)
	}
	if header != nil {
		req.Header = header.Clone()
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to send request to salesforce: %w", err)
	}
	defer resp.Body.Close()

	resBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read salesforce response: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resBody,
	}, nil
}
