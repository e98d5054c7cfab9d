package handlers

import (
	"context"
	"net"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/learn2pay/backend/models"
)

// Auditor records security events without blocking the request
type Auditor interface {
	Record(log *models.AuditLog)
}

// AuditReader exposes the recorded trail for staff review
type AuditReader interface {
	History(ctx context.Context, principalID uuid.UUID, limit int) ([]*models.AuditLog, error)
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// auditEvent builds an event stamped with the request metadata
func auditEvent(r *http.Request, action models.AuditAction) *models.AuditLog {
	return models.NewAuditLog(action).
		WithRequest(chimw.GetReqID(r.Context()), clientAddr(r), r.UserAgent())
}

func record(a Auditor, log *models.AuditLog) {
	if a != nil {
		a.Record(log)
	}
}
