package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const limitInfoHeader = "Sforce-Limit-Info"

// call is one logical request, path is resolved against the instance url of
// the session current at each attempt
type call struct {
	method  string
	path    string
	body    []byte
	success int
	noRetry bool
}

func (s *Session) resolve(path string) string {
	if strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		return path
	}
	return s.InstanceUrl + path
}

// send performs cl and re-authenticates on a 401 response
// - at most maxReauth re-authentications per call, a 401 after that is returned as ApiError
// - usage info is recorded for every response, whatever its status
// - TransportError if no response was received, this is not retried
func (c *Client) send(ctx context.Context, cl call) (*Response, error) {
	for attempt := 0; ; attempt++ {
		s := c.sessions.Current()
		if s == nil {
			return nil, AuthError{Message: "no salesforce session"}
		}
		reqUrl := s.resolve(cl.path)
		header := http.Header{
			"Accept":        {"application/json"},
			"Authorization": {s.AuthorizationHeader()},
		}
		if cl.body != nil {
			header.Set("Content-Type", "application/json")
		}

		resp, err := c.transport.Perform(ctx, cl.method, reqUrl, header, cl.body)
		if err != nil {
			return nil, TransportError{Message: err.Error(), Err: err}
		}
		c.recordUsage(resp)
		c.log.Debug("salesforce response",
			zap.String("method", cl.method),
			zap.String("url", reqUrl),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt+1),
		)

		switch {
		case resp.StatusCode == cl.success:
			return resp, nil
		case resp.StatusCode == http.StatusUnauthorized && !cl.noRetry && attempt < c.maxReauth:
			c.log.Warn("salesforce session rejected, re-authenticating",
				zap.String("method", cl.method),
				zap.String("url", reqUrl),
			)
			if _, err := c.sessions.Authenticate(ctx); err != nil {
				return nil, err
			}
		default:
			return nil, ApiError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
		}
	}
}

func (c *Client) recordUsage(resp *Response) {
	v := resp.Header.Values(limitInfoHeader)
	if len(v) == 0 {
		c.usage.Store(nil)
		return
	}
	c.usage.Store(&v[0])
}

func (c *Client) recordPath(typeName, id string) (string, error) {
	u, err := c.catalog.ResolveUrl(typeName, RelationSobject)
	if err != nil {
		return "", err
	}
	return u + "/" + url.PathEscape(id), nil
}

// GetInto fetches a single record and decodes it into E
// - UnknownTypeError if typeName is not in the catalog, no request is sent
// - ApiError if status code != 200
func GetInto[E any](ctx context.Context, c *Client, typeName, id string) (E, error) {
	var rec E
	path, err := c.recordPath(typeName, id)
	if err != nil {
		return rec, err
	}
	resp, err := c.send(ctx, call{method: http.MethodGet, path: path, success: http.StatusOK})
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(resp.Body, &rec); err != nil {
		return rec, fmt.Errorf("unable to parse salesforce record: %w", err)
	}
	return rec, nil
}

// Get fetches a single record of typeName by id
func (c *Client) Get(ctx context.Context, typeName, id string) (Record, error) {
	return GetInto[Record](ctx, c, typeName, id)
}

// Create posts a new record and returns its id
// - ApiError if status code != 201, or if salesforce answers 201 without success
func (c *Client) Create(ctx context.Context, typeName string, fields any) (string, error) {
	path, err := c.catalog.ResolveUrl(typeName, RelationSobject)
	if err != nil {
		return "", err
	}
	reqBody, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("unable to create salesforce payload: %w", err)
	}

	resp, err := c.send(ctx, call{method: http.MethodPost, path: path, body: reqBody, success: http.StatusCreated})
	if err != nil {
		return "", err
	}
	var parsed PostResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil || !parsed.Success {
		return "", ApiError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	return parsed.Id, nil
}

// Update sends the fields as a PATCH, tunnelled through POST with the _HttpMethod override
// - ApiError if status code != 204
func (c *Client) Update(ctx context.Context, typeName, id string, fields any) error {
	path, err := c.recordPath(typeName, id)
	if err != nil {
		return err
	}
	reqBody, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("unable to create salesforce payload: %w", err)
	}

	_, err = c.send(ctx, call{
		method:  http.MethodPost,
		path:    path + "?_HttpMethod=PATCH",
		body:    reqBody,
		success: http.StatusNoContent,
	})
	return err
}

// Delete removes a record
// - ApiError if status code != 204
func (c *Client) Delete(ctx context.Context, typeName, id string) error {
	path, err := c.recordPath(typeName, id)
	if err != nil {
		return err
	}
	_, err = c.send(ctx, call{method: http.MethodDelete, path: path, success: http.StatusNoContent})
	return err
}
