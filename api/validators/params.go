package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
)

// ParseUUIDParam reads a chi path parameter. A malformed id cannot name a stored record,
// so it is reported with the caller's not-found message.
func ParseUUIDParam(r *http.Request, key, notFoundMsg string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, notFoundMsg)
	}
	return id, nil
}

// ParseOptionalUUID parses an optional identifier from a query string or body field.
func ParseOptionalUUID(raw, field string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+field).WithDetails(map[string]any{"field": field})
	}
	return &id, nil
}
