// Package registry looks up company data in the Brønnøysund registers
// through a retrying HTTP transport and a lookup cache.
package registry

import (
	"encoding/json"
	"fmt"
	"strings"

	"saft-reconciliation-service/pkg/errors"
)

// Kind classifies a transient lookup failure
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindConnection  Kind = "connection_error"
	KindRateLimited Kind = "rate_limited"
	KindServer      Kind = "server_error"
	KindHTTP        Kind = "http_error"
	KindRequest     Kind = "request_error"
)

const (
	// CodeNotFound is the error code of a definitive miss
	CodeNotFound = "not_found"
	// CodeInvalidJSON is the error code of an unusable response body
	CodeInvalidJSON = "invalid_json"
)

// Outcome is the closed set of lookup results: Success, NotFound, Transient
// and Malformed.
type Outcome interface {
	outcome()
}

// Success carries the response body selected by the list policy
type Success struct {
	Payload json.RawMessage
}

// NotFound is a definitive 404 from the registry
type NotFound struct{}

// Transient is an infrastructure failure worth retrying later
type Transient struct {
	Kind   Kind
	Detail string
}

// Malformed is a response whose body could not be used
type Malformed struct {
	Reason string
	Detail string
}

func (Success) outcome()   {}
func (NotFound) outcome()  {}
func (Transient) outcome() {}
func (Malformed) outcome() {}

// Cacheable reports whether an outcome may be served again from the cache.
// Transient failures never are.
func Cacheable(o Outcome) bool {
	switch o.(type) {
	case Success, NotFound, Malformed:
		return true
	default:
		return false
	}
}

// Result is the caller-facing view of an Outcome
type Result struct {
	Data         json.RawMessage `json:"data"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	FromCache    bool            `json:"from_cache"`
}

// OK reports whether the lookup produced data
func (r Result) OK() bool {
	return r.ErrorCode == ""
}

// IsTransient reports whether the error code is one of the transient kinds
func (r Result) IsTransient() bool {
	switch Kind(r.ErrorCode) {
	case KindTimeout, KindConnection, KindRateLimited, KindServer, KindHTTP, KindRequest:
		return true
	}
	return false
}

// TransientError converts a transient failure into a network error for
// source. Every other result, found or not, yields nil.
func (r Result) TransientError(source string) error {
	if !r.IsTransient() {
		return nil
	}

	var code errors.ErrorCode
	switch Kind(r.ErrorCode) {
	case KindTimeout:
		code = errors.CodeTimeout
	case KindConnection:
		code = errors.CodeConnectionFailed
	case KindRateLimited, KindServer:
		code = errors.CodeServiceUnavailable
	default:
		code = errors.ErrorCode(r.ErrorCode)
	}
	return errors.NetworkError(code, source, fmt.Errorf("%s", r.ErrorMessage)).
		WithContext("kind", r.ErrorCode)
}

// NewResult renders an outcome for the named source
func NewResult(source string, o Outcome, fromCache bool) Result {
	switch v := o.(type) {
	case Success:
		return Result{Data: v.Payload, FromCache: fromCache}
	case NotFound:
		return Result{
			ErrorCode:    CodeNotFound,
			ErrorMessage: fmt.Sprintf("%s: no match for the organization number.", source),
			FromCache:    fromCache,
		}
	case Transient:
		return Result{
			ErrorCode:    string(v.Kind),
			ErrorMessage: fmt.Sprintf("%s: %s.", source, v.Detail),
			FromCache:    fromCache,
		}
	case Malformed:
		return Result{
			ErrorCode:    v.Reason,
			ErrorMessage: fmt.Sprintf("%s: %s.", source, v.Detail),
			FromCache:    fromCache,
		}
	default:
		return Result{
			ErrorCode:    string(KindRequest),
			ErrorMessage: fmt.Sprintf("%s: unknown lookup outcome %T.", source, o),
			FromCache:    fromCache,
		}
	}
}

// outcome kinds as persisted by the stores
const (
	storedSuccess   = "success"
	storedNotFound  = "not_found"
	storedMalformed = "malformed"
)

func encodeOutcome(o Outcome) (kind string, payload []byte, message string, err error) {
	switch v := o.(type) {
	case Success:
		return storedSuccess, []byte(v.Payload), "", nil
	case NotFound:
		return storedNotFound, nil, "", nil
	case Malformed:
		return storedMalformed, nil, v.Reason + "\x00" + v.Detail, nil
	default:
		return "", nil, "", fmt.Errorf("outcome %T is not storable", o)
	}
}

func decodeOutcome(kind string, payload []byte, message string) (Outcome, error) {
	switch kind {
	case storedSuccess:
		return Success{Payload: json.RawMessage(payload)}, nil
	case storedNotFound:
		return NotFound{}, nil
	case storedMalformed:
		reason, detail, _ := strings.Cut(message, "\x00")
		return Malformed{Reason: reason, Detail: detail}, nil
	default:
		return nil, fmt.Errorf("unknown stored outcome kind %q", kind)
	}
}
