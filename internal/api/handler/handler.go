// Package handler exposes the service over HTTP (gin) and the
// websocket upgrade endpoint.
package handler

import (
	"errors"
	"net/http"

	"civictrack/backend/internal/authority"
	"civictrack/backend/internal/domain"
	"civictrack/backend/internal/ledger"
	"civictrack/backend/internal/lifecycle"
	"civictrack/backend/internal/notifyhub"
	"civictrack/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// Handler bundles the services the routes dispatch into.
type Handler struct {
	Storage   storage.Storage
	Ledger    *ledger.Service
	Lifecycle *lifecycle.Service
	Resolver  *authority.Resolver
	Hub       *notifyhub.ManagerService
	JWTSecret []byte
}

func NewHandler(s storage.Storage, l *ledger.Service, lc *lifecycle.Service, r *authority.Resolver, hub *notifyhub.ManagerService, secret []byte) *Handler {
	return &Handler{
		Storage:   s,
		Ledger:    l,
		Lifecycle: lc,
		Resolver:  r,
		Hub:       hub,
		JWTSecret: secret,
	}
}

// respondError maps the domain taxonomy onto HTTP statuses. Nothing is
// ever downgraded to a fake success.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidState):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrTransient):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ledger.ErrBadPolarity), errors.Is(err, lifecycle.ErrBadInput):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
