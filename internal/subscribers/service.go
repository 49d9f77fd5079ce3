package subscribers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/storefront-labs/storefront-backend/pkg/db"
	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
)

// SuccessMessage is returned to the client on a new subscription.
const SuccessMessage = "Subscription successful"

var errAlreadySubscribed = pkgerrors.New(pkgerrors.CodeConflict, "Email already subscribed")

// Service handles newsletter signups.
type Service interface {
	Subscribe(ctx context.Context, email string) (*models.Subscriber, error)
}

type service struct {
	repo     *Repository
	validate *validator.Validate
	logg     *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("subscriber repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, validate: validator.New(), logg: logg}, nil
}

func (s *service) Subscribe(ctx context.Context, email string) (*models.Subscriber, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Email is required")
	}
	if err := s.validate.Var(email, "email"); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid email")
	}

	exists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check subscriber")
	}
	if exists {
		return nil, errAlreadySubscribed
	}

	sub := &models.Subscriber{Email: email}
	if err := s.repo.Create(ctx, sub); err != nil {
		if db.IsUniqueViolation(err, "ux_subscribers_email") {
			return nil, errAlreadySubscribed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create subscriber")
	}

	s.logg.Info(s.logg.WithField(ctx, "subscriber_id", sub.ID.String()), "newsletter subscription created")
	return sub, nil
}
