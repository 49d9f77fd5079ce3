package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/storefront-labs/storefront-backend/pkg/config"
	"github.com/storefront-labs/storefront-backend/pkg/db"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
	"github.com/storefront-labs/storefront-backend/pkg/security"
)

var (
	// ErrUserExists is the conflict returned for a taken email.
	ErrUserExists   = pkgerrors.New(pkgerrors.CodeConflict, "User already exists")
	errUserNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
)

// Service covers the profile read and user administration.
type Service interface {
	Profile(ctx context.Context, id uuid.UUID) (*UserDTO, error)
	List(ctx context.Context) ([]*UserDTO, error)
	Create(ctx context.Context, input CreateInput) (*UserDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*UserDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CreateInput is an admin-created account. Role defaults to customer.
type CreateInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// UpdateInput replaces only the fields that are set.
type UpdateInput struct {
	Name  *string
	Email *string
	Role  *string
}

type service struct {
	repo        *Repository
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
}

// NewService builds the user administration service.
func NewService(repo *Repository, passwordCfg config.PasswordConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, passwordCfg: passwordCfg, logg: logg}, nil
}

func (s *service) Profile(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, errUserNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return FromModel(user), nil
}

func (s *service) List(ctx context.Context) ([]*UserDTO, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list users")
	}
	return FromModels(list), nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*UserDTO, error) {
	role := enums.RoleCustomer
	if strings.TrimSpace(input.Role) != "" {
		parsed, err := enums.ParseRole(strings.TrimSpace(input.Role))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid role")
		}
		role = parsed
	}

	user, err := CreateAccount(ctx, s.repo, s.passwordCfg, CreateUserDTO{
		Name:  input.Name,
		Email: input.Email,
		Role:  role,
	}, input.Password)
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"created_user_id": user.ID.String(),
		"role":            user.Role,
	}), "user created by admin")
	return user, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*UserDTO, error) {
	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Name is required")
		}
		updates["name"] = name
	}
	if input.Email != nil {
		email := NormalizeEmail(*input.Email)
		if email == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Email is required")
		}
		updates["email"] = email
	}
	if input.Role != nil {
		role, err := enums.ParseRole(strings.TrimSpace(*input.Role))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid role")
		}
		updates["role"] = role
	}

	if len(updates) > 0 {
		rows, err := s.repo.Update(ctx, id, updates)
		if err != nil {
			if isDuplicateEmail(err) {
				return nil, ErrUserExists
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update user")
		}
		if rows == 0 {
			return nil, errUserNotFound
		}
	}
	return s.Profile(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	rows, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete user")
	}
	if rows == 0 {
		return errUserNotFound
	}
	return nil
}

// CreateAccount validates the credentials, hashes the password and inserts the user.
// Registration and admin creation share it.
func CreateAccount(ctx context.Context, repo *Repository, cfg config.PasswordConfig, dto CreateUserDTO, password string) (*UserDTO, error) {
	if strings.TrimSpace(dto.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Name is required")
	}
	if NormalizeEmail(dto.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Email is required")
	}
	if len(password) < security.MinPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("Password must be at least %d characters", security.MinPasswordLength))
	}

	if _, err := repo.FindByEmail(ctx, NormalizeEmail(dto.Email)); err == nil {
		return nil, ErrUserExists
	} else if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
	}

	hash, err := security.HashPassword(password, cfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	dto.PasswordHash = hash

	user, err := repo.Create(ctx, dto)
	if err != nil {
		if isDuplicateEmail(err) {
			return nil, ErrUserExists
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}
	return FromModel(user), nil
}

func isDuplicateEmail(err error) bool {
	return db.IsUniqueViolation(err, "ux_users_email")
}
