package salesforce

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	DefaultApiVersion = 37
	DefaultMaxReauth  = 1
	DefaultMaxPages   = 10000
)

// Params to create a Client, one of HttpClient or Transport is required
// - LoginUrl defaults to DefaultLoginUrl, ApiVersion to DefaultApiVersion
// - MaxReauth is the number of re-authentications a single request may trigger on 401, defaults to DefaultMaxReauth
// - MaxPages caps the pages followed by a query, defaults to DefaultMaxPages
// - Backoff retries transport failures of the token request, defaults to 3 exponential retries
type Params struct {
	HttpClient  HttpClient      `validate:"required_without=Transport"`
	Transport   Transport       `validate:"required_without=HttpClient"`
	Credentials Grant           `validate:"required"`
	LoginUrl    string          `validate:"omitempty,url"`
	ApiVersion  int             `validate:"gte=0"`
	MaxReauth   int             `validate:"gte=0"`
	MaxPages    int             `validate:"gte=0"`
	Backoff     backoff.BackOff `validate:"-"`
	Logger      *zap.Logger     `validate:"-"`
}

// Client is a salesforce REST api client bound to one set of credentials.
// It is meant to be used by one goroutine at a time, see SessionManager.
type Client struct {
	transport  Transport
	sessions   *SessionManager
	catalog    Catalog
	apiVersion int
	maxReauth  int
	maxPages   int
	log        *zap.Logger
	usage      atomic.Pointer[string]
}

// New authenticates and fetches the object catalog
// - AuthError if the credentials are rejected
// - ApiError if the sobjects resource fails
func New(ctx context.Context, p Params) (*Client, error) {
	if err := validateStruct(p); err != nil {
		return nil, fmt.Errorf("invalid salesforce params: %w", err)
	}
	c, err := newClient(p)
	if err != nil {
		return nil, err
	}

	if _, err := c.sessions.Authenticate(ctx); err != nil {
		return nil, err
	}
	if c.catalog, err = c.describe(ctx); err != nil {
		return nil, err
	}
	c.log.Info("salesforce client ready", zap.Int("objectTypes", len(c.catalog.objects)))
	return c, nil
}

func newClient(p Params) (*Client, error) {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("salesforce")

	t := p.Transport
	if t == nil {
		t = NewHttpTransport(p.HttpClient)
	}
	sm, err := NewSessionManager(t, p.Credentials, p.LoginUrl, p.Backoff, log)
	if err != nil {
		return nil, err
	}

	c := &Client{
		transport:  t,
		sessions:   sm,
		apiVersion: p.ApiVersion,
		maxReauth:  p.MaxReauth,
		maxPages:   p.MaxPages,
		log:        log,
	}
	if c.apiVersion == 0 {
		c.apiVersion = DefaultApiVersion
	}
	if c.maxReauth == 0 {
		c.maxReauth = DefaultMaxReauth
	}
	if c.maxPages == 0 {
		c.maxPages = DefaultMaxPages
	}
	return c, nil
}

// UsageInfo returns the Sforce-Limit-Info header of the most recent response, e.g. "api-usage=18/5000"
// - false if no response has been received yet, or the last one carried no usage header
func (c *Client) UsageInfo() (string, bool) {
	u := c.usage.Load()
	if u == nil {
		return "", false
	}
	return *u, true
}

func (c *Client) Catalog() Catalog {
	return c.catalog
}

// Session returns the current session
func (c *Client) Session() *Session {
	return c.sessions.Current()
}
