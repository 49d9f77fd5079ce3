package cart

import (
	"strings"

	"github.com/google/uuid"
)

// Owner identifies whose cart an operation targets. A user id takes precedence over a guest id.
type Owner struct {
	UserID  *uuid.UUID
	GuestID string
}

// UserOwner builds an owner for a registered user.
func UserOwner(id uuid.UUID) Owner {
	return Owner{UserID: &id}
}

// GuestOwner builds an owner for an anonymous session.
func GuestOwner(guestID string) Owner {
	return Owner{GuestID: strings.TrimSpace(guestID)}
}

// IsZero reports whether neither identity is present.
func (o Owner) IsZero() bool {
	return o.userID() == nil && strings.TrimSpace(o.GuestID) == ""
}

func (o Owner) userID() *uuid.UUID {
	if o.UserID == nil || *o.UserID == uuid.Nil {
		return nil
	}
	return o.UserID
}

// LineKey is the uniqueness key of a cart line.
type LineKey struct {
	ProductID uuid.UUID
	Size      string
	Color     string
}
