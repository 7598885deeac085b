package goAuthClient

import (
	"context"
	"errors"
	"strings"
)

// AuditErrorCode is the stable error label written into [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrNetwork            AuditErrorCode = "network"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrServer             AuditErrorCode = "server"
	auditErrStorage            AuditErrorCode = "storage"
	auditErrLoggedOut          AuditErrorCode = "logged_out"
	auditErrNotAuthenticated   AuditErrorCode = "not_authenticated"
	auditErrDecode             AuditErrorCode = "decode"
	auditErrUnsupported        AuditErrorCode = "unsupported"
	auditErrCanceled           AuditErrorCode = "canceled"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (m *Manager) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subjectToken string,
	ticketID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if m == nil || m.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventType: eventType,
		Subject:   m.subject(subjectToken),
		RequestID: RequestIDFromContext(ctx),
		TicketID:  ticketID,
		State:     m.State().Kind.String(),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	m.audit.Emit(ctx, event)
}

// subject returns the sub claim of token for attribution, or "".
func (m *Manager) subject(token string) string {
	if token == "" {
		return ""
	}
	claims, err := m.codec.Decode(token)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(claims.Subject)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	// Storage failures during login or refresh are server-kind errors that
	// also wrap ErrStorage; report the more specific cause.
	switch {
	case errors.Is(err, ErrStorage):
		return auditErrStorage
	case errors.Is(err, ErrLoggedOut):
		return auditErrLoggedOut
	case errors.Is(err, context.Canceled):
		return auditErrCanceled
	case errors.Is(err, ErrNetwork):
		return auditErrNetwork
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrNotAuthenticated):
		return auditErrNotAuthenticated
	case errors.Is(err, ErrDecode):
		return auditErrDecode
	case errors.Is(err, ErrRegistrationUnsupported):
		return auditErrUnsupported
	case errors.Is(err, ErrServer):
		return auditErrServer
	default:
		return auditErrInternal
	}
}
