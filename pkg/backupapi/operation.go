package backupapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
)

// Operation is the kind of call made against the appliance. Each kind has its
// own HTTP method and its own mapping of failure statuses to errors.
type Operation int

const (
	OpAuth Operation = iota
	OpGet
	OpDelete
	OpPost
)

// Method returns the HTTP method used by the operation.
func (o Operation) Method() string {
	switch o {
	case OpAuth, OpPost:
		return http.MethodPost
	case OpGet:
		return http.MethodGet
	case OpDelete:
		return http.MethodDelete
	}
	panic(fmt.Sprintf("unknown operation %d", o))
}

func (o Operation) String() string {
	switch o {
	case OpAuth:
		return "auth"
	case OpGet:
		return "get"
	case OpDelete:
		return "delete"
	case OpPost:
		return "post"
	}
	return fmt.Sprintf("operation(%d)", int(o))
}

var (
	// ErrRemoteUnavailable matches authentication and transport failures.
	ErrRemoteUnavailable = errors.New("appliance unavailable")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrRateLimited       = errors.New("too many requests")
	// ErrInvalidData indicates the appliance returned a value outside the expected domain.
	ErrInvalidData = errors.New("invalid data from appliance")
)

// RemoteError is a non-2xx answer from the appliance.
type RemoteError struct {
	Op         Operation
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: appliance returned %d: %s", e.Op, e.StatusCode, msg)
}

// Is maps the status code onto the package sentinel errors.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrUnauthorized, ErrRemoteUnavailable:
		return e.unauthorized()
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

func (e *RemoteError) unauthorized() bool {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	case http.StatusTooManyRequests:
		return false
	}
	// Any other rejection of the token request means we cannot log in.
	return e.Op == OpAuth && (e.StatusCode < 200 || e.StatusCode > 299)
}

// TransportError wraps a failure to reach the appliance at all.
type TransportError struct {
	Op  Operation
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool {
	return target == ErrRemoteUnavailable
}

// errorBody is the error shape used by the appliance, both top level and
// nested under "response".
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func checkResponse(op Operation, r *http.Response) error {
	if c := r.StatusCode; 200 <= c && c <= 299 {
		return nil
	}

	e := &RemoteError{Op: op, StatusCode: r.StatusCode}
	data, err := ioutil.ReadAll(r.Body)
	if err == nil && len(data) > 0 {
		e.Message = errorMessage(data)
	}
	return e
}

func errorMessage(data []byte) string {
	var wrapped struct {
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Response) > 0 {
		var s string
		if err := json.Unmarshal(wrapped.Response, &s); err == nil {
			return s
		}
		data = wrapped.Response
	}

	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil {
		for _, m := range []string{eb.Error, eb.Message, eb.Detail} {
			if m != "" {
				return m
			}
		}
	}
	return strings.TrimSpace(string(data))
}
