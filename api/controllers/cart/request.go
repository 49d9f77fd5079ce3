package cart

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/storefront-labs/storefront-backend/api/middleware"
	"github.com/storefront-labs/storefront-backend/api/validators"
	cartsvc "github.com/storefront-labs/storefront-backend/internal/cart"
)

// identity is how an unauthenticated storefront names its cart.
type identity struct {
	UserID  string `json:"userId,omitempty"`
	GuestID string `json:"guestId,omitempty"`
}

type lineRequest struct {
	identity
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity"`
	Size      string    `json:"size,omitempty"`
	Color     string    `json:"color,omitempty"`
}

func (l lineRequest) key() cartsvc.LineKey {
	return cartsvc.LineKey{ProductID: l.ProductID, Size: l.Size, Color: l.Color}
}

type mergeRequest struct {
	GuestID string `json:"guestId" validate:"required"`
}

// resolveOwner prefers the bearer token; without one the client-supplied ids are used.
func resolveOwner(r *http.Request, id identity) (cartsvc.Owner, error) {
	if userID, ok := middleware.UserUUIDFromContext(r.Context()); ok {
		return cartsvc.UserOwner(userID), nil
	}
	userID, err := validators.ParseOptionalUUID(id.UserID, "userId")
	if err != nil {
		return cartsvc.Owner{}, err
	}
	if userID != nil {
		return cartsvc.UserOwner(*userID), nil
	}
	return cartsvc.GuestOwner(id.GuestID), nil
}

func queryIdentity(r *http.Request) identity {
	q := r.URL.Query()
	return identity{UserID: q.Get("userId"), GuestID: q.Get("guestId")}
}

// deleteLine reads the line key from the query string, falling back to a JSON body for
// clients that send DELETE with a payload.
func deleteLine(r *http.Request) (lineRequest, error) {
	q := r.URL.Query()
	req := lineRequest{
		identity: queryIdentity(r),
		Size:     q.Get("size"),
		Color:    q.Get("color"),
	}
	if raw := strings.TrimSpace(q.Get("productId")); raw != "" {
		id, err := validators.ParseOptionalUUID(raw, "productId")
		if err != nil {
			return req, err
		}
		req.ProductID = *id
		return req, nil
	}
	var body lineRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return req, err
	}
	return body, nil
}
