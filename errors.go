package goAuthClient

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/MrEthical07/goAuthClient/jwt"
)

var (
	// ErrDecode reports a credential that could not be decoded. It is the same
	// sentinel as [jwt.ErrDecode].
	ErrDecode = jwt.ErrDecode
	// ErrNetwork reports a transport-level failure (unreachable, timeout).
	ErrNetwork = errors.New("network failure")
	// ErrInvalidCredentials reports a login or refresh rejected by the server.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrServer reports an unexpected server response or a failed persist step.
	ErrServer = errors.New("server error")
	// ErrNotAuthenticated is returned when an operation needs an authenticated session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrStorage reports a failed read or write against the credential store.
	ErrStorage = errors.New("credential storage failure")
	// ErrLoggedOut is delivered to refresh waiters whose session ended while
	// the refresh was in flight.
	ErrLoggedOut = errors.New("session ended during refresh")
	// ErrRegistrationUnsupported is returned by Register when the transport
	// cannot register accounts.
	ErrRegistrationUnsupported = errors.New("transport does not support registration")
	// ErrManagerNotReady is returned when a nil or closed manager is used.
	ErrManagerNotReady = errors.New("manager not ready")
)

// DefaultErrorMessage is the user-facing message used when a server reply
// carries no message of its own.
const DefaultErrorMessage = "An error occurred"

// ErrorKind classifies an [AuthError].
type ErrorKind int

const (
	// KindServer is the zero value so an unclassified failure is never
	// mistaken for a credential rejection.
	KindServer ErrorKind = iota
	KindNetwork
	KindInvalidCredentials
	KindDecode
	KindNotAuthenticated
	KindStorage
	KindLoggedOut
)

var kindSentinels = [...]error{
	KindServer:             ErrServer,
	KindNetwork:            ErrNetwork,
	KindInvalidCredentials: ErrInvalidCredentials,
	KindDecode:             ErrDecode,
	KindNotAuthenticated:   ErrNotAuthenticated,
	KindStorage:            ErrStorage,
	KindLoggedOut:          ErrLoggedOut,
}

func (k ErrorKind) sentinel() error {
	if k < 0 || int(k) >= len(kindSentinels) {
		return ErrServer
	}
	return kindSentinels[k]
}

// String returns the lower-case kind name used in logs and audit metadata.
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindDecode:
		return "decode"
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindStorage:
		return "storage"
	case KindLoggedOut:
		return "logged_out"
	default:
		return "server"
	}
}

// AuthError is the typed failure returned by [Manager] operations and
// transports.
//
// errors.Is matches the sentinel of its Kind (ErrNetwork, ErrServer, ...) as
// well as anything in the wrapped Err chain.
type AuthError struct {
	Kind ErrorKind
	// Status is the HTTP status when the failure came from a server reply.
	Status int
	// Message is safe to show to an end user.
	Message string
	Err     error
}

// NewAuthError builds an [AuthError] of kind wrapping err.
func NewAuthError(kind ErrorKind, status int, message string, err error) *AuthError {
	return &AuthError{Kind: kind, Status: status, Message: message, Err: err}
}

func (e *AuthError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Kind.sentinel().Error()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *AuthError) Is(target error) bool {
	if e == nil {
		return false
	}
	return target == e.Kind.sentinel()
}

// UserMessage returns Message, or [DefaultErrorMessage] when empty.
func (e *AuthError) UserMessage() string {
	if e == nil || e.Message == "" {
		return DefaultErrorMessage
	}
	return e.Message
}

// classifyTransportError maps any transport failure onto an [AuthError].
// Transports are expected to return *AuthError already; anything else is
// treated as a network failure when it looks like one and a server failure
// otherwise.
func classifyTransportError(err error) *AuthError {
	if err == nil {
		return nil
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.As(err, &netErr) {
		return NewAuthError(KindNetwork, 0, "", err)
	}
	return NewAuthError(KindServer, 0, "", err)
}

// persistError reports a store failure that happened after the server
// already issued credentials. Both ErrServer and ErrStorage match.
func persistError(err error) *AuthError {
	return NewAuthError(KindServer, 0, "", fmt.Errorf("%w: %w", ErrStorage, err))
}

func storageError(err error) *AuthError {
	return NewAuthError(KindStorage, 0, "", err)
}
