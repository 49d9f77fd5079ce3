package controllers

import (
	"net/http"

	"github.com/storefront-labs/storefront-backend/api/responses"
	"github.com/storefront-labs/storefront-backend/api/validators"
	"github.com/storefront-labs/storefront-backend/internal/subscribers"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
)

type subscribeRequest struct {
	Email string `json:"email"`
}

// Subscribe adds an address to the newsletter list. Email checks live in the service so the
// client sees its specific messages.
func Subscribe(svc subscribers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req subscribeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := svc.Subscribe(r.Context(), req.Email); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteMessage(w, http.StatusCreated, subscribers.SuccessMessage)
	}
}
