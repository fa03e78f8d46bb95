package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const DefaultLoginUrl = "https://login.salesforce.com"

const tokenPath = "/services/oauth2/token"

// Session is the live authentication context returned by the token endpoint
type Session struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
	InstanceUrl string `json:"instance_url"`
	Id          string `json:"id"`
	IssuedAt    string `json:"issued_at"`
	Signature   string `json:"signature"`

	// Raw holds every attribute of the token response
	Raw map[string]any `json:"-"`
}

// AuthorizationHeader value for the Authorization header, e.g. "Bearer 00D..."
func (s *Session) AuthorizationHeader() string {
	return s.TokenType + " " + s.AccessToken
}

// SessionManager owns the credentials and the current Session.
// Authenticate replaces the Session as a whole. Calls are not debounced: two
// callers hitting a 401 at the same time will both authenticate and the last
// one wins, callers sharing a client across goroutines should serialise access.
type SessionManager struct {
	transport Transport
	grant     Grant
	loginUrl  string
	backoff   backoff.BackOff
	log       *zap.Logger
	current   atomic.Pointer[Session]
}

func NewSessionManager(t Transport, g Grant, loginUrl string, b backoff.BackOff, log *zap.Logger) (*SessionManager, error) {
	if t == nil {
		return nil, fmt.Errorf("transport needs to be provided")
	}
	if g == nil {
		return nil, fmt.Errorf("credentials need to be provided")
	}
	if loginUrl == "" {
		loginUrl = DefaultLoginUrl
	}
	if b == nil {
		b = backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionManager{
		transport: t,
		grant:     g,
		loginUrl:  strings.TrimSuffix(loginUrl, "/"),
		backoff:   b,
		log:       log,
	}, nil
}

// Current returns the live Session, nil before the first successful Authenticate
func (m *SessionManager) Current() *Session {
	return m.current.Load()
}

// AuthorizationHeader of the current Session, empty when there is none
func (m *SessionManager) AuthorizationHeader() string {
	s := m.current.Load()
	if s == nil {
		return ""
	}
	return s.AuthorizationHeader()
}

// Authenticate obtains a new Session and makes it the current one
// - transport failures are retried using the configured backoff, then returned as AuthError with a Message
// - any status other than 200 is returned immediately as AuthError with the status code and body
func (m *SessionManager) Authenticate(ctx context.Context) (*Session, error) {
	data, err := m.grant.Values()
	if err != nil {
		return nil, AuthError{Message: fmt.Sprintf("unable to build token request: %v", err)}
	}
	body := []byte(data.Encode())
	header := http.Header{
		"Content-Type": {"application/x-www-form-urlencoded"},
		"Accept":       {"application/json"},
	}

	resp, err := backoff.RetryWithData[*Response](func() (*Response, error) {
		resp, err := m.transport.Perform(ctx, http.MethodPost, m.loginUrl+tokenPath, header, body)
		if err != nil {
			m.log.Warn("salesforce token request failed", zap.Error(err))
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return resp, nil
	}, backoff.WithContext(m.backoff, ctx))
	if err != nil {
		return nil, AuthError{Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, AuthError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	s, err := parseSession(resp.Body)
	if err != nil {
		return nil, err
	}
	m.current.Store(s)
	m.log.Info("authenticated with salesforce", zap.String("instanceUrl", s.InstanceUrl))
	return s, nil
}

func parseSession(body []byte) (*Session, error) {
	var s *Session
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, AuthError{StatusCode: http.StatusOK, Body: string(body), Message: err.Error()}
	}
	if s == nil || s.TokenType == "" || s.AccessToken == "" || s.InstanceUrl == "" {
		return nil, AuthError{StatusCode: http.StatusOK, Body: string(body), Message: "incomplete token response"}
	}
	if err := json.Unmarshal(body, &s.Raw); err != nil {
		return nil, AuthError{StatusCode: http.StatusOK, Body: string(body), Message: err.Error()}
	}
	s.InstanceUrl = strings.TrimSuffix(s.InstanceUrl, "/")
	return s, nil
}
