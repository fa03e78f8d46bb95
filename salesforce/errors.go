package salesforce

import (
	"errors"
	"fmt"
)

// ErrPageLimit is returned when a query keeps handing out continuation urls past Params.MaxPages
var ErrPageLimit = errors.New("salesforce query page limit reached")

// AuthError the token endpoint rejected the credentials, or could not be reached
// - StatusCode is 0 when no response was received, Message then holds the cause
type AuthError struct {
	StatusCode int
	Body       string
	Message    string
}

func (a AuthError) Error() string {
	if a.StatusCode == 0 {
		return fmt.Sprintf("error authenticating with salesforce: %v", a.Message)
	}
	return fmt.Sprintf("error authenticating with salesforce - status code: %v, body: %v", a.StatusCode, a.Body)
}

// UnknownTypeError the object type (or one of its urls) is not in the catalog
type UnknownTypeError struct {
	TypeName string
	Relation string
}

func (u UnknownTypeError) Error() string {
	if u.Relation != "" {
		return fmt.Sprintf("salesforce object type %v has no %v url", u.TypeName, u.Relation)
	}
	return fmt.Sprintf("salesforce object type unknown: %v", u.TypeName)
}

// ApiError salesforce responded with an unexpected status code, or reported a failed create
type ApiError struct {
	StatusCode int
	Body       string
}

func (a ApiError) Error() string {
	return fmt.Sprintf("error calling salesforce - status code: %v, body: %v", a.StatusCode, a.Body)
}

// TransportError the request never got a response
type TransportError struct {
	Message string
	Err     error
}

func (t TransportError) Error() string {
	return fmt.Sprintf("salesforce transport error: %v", t.Message)
}

func (t TransportError) Unwrap() error {
	return t.Err
}
