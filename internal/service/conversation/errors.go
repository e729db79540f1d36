package conversation

import (
	"errors"
	"fmt"

	"github.com/zhouzirui/lingo-chat/backend/internal/model/membership"
)

// Kind classifies a failed conversation request.
type Kind int

const (
	KindUnauthenticated Kind = iota + 1
	KindPreviewOnly
	KindQuotaExceeded
	KindUpstreamUnavailable
	KindInvalidRequest
)

// Code is the machine-readable error code reported to callers.
func (k Kind) Code() string {
	switch k {
	case KindUnauthenticated:
		return "unauthorized"
	case KindPreviewOnly:
		return "paywall_preview"
	case KindQuotaExceeded:
		return "paywall_limit_reached"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return "server_error"
	}
}

// Sentinels for errors.Is; they match any GatewayError of the same kind.
var (
	ErrUnauthenticated     = &GatewayError{Kind: KindUnauthenticated}
	ErrPreviewOnly         = &GatewayError{Kind: KindPreviewOnly}
	ErrQuotaExceeded       = &GatewayError{Kind: KindQuotaExceeded}
	ErrUpstreamUnavailable = &GatewayError{Kind: KindUpstreamUnavailable}
	ErrInvalidRequest      = &GatewayError{Kind: KindInvalidRequest}
)

// GatewayError is a failure surfaced to the caller.
type GatewayError struct {
	Kind         Kind
	Message      string
	RequiredTier membership.Tier
	Err          error
}

func (e *GatewayError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Code()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func (e *GatewayError) Is(target error) bool {
	var other *GatewayError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

func newError(kind Kind, msg string, err error) *GatewayError {
	return &GatewayError{Kind: kind, Message: msg, Err: err}
}
