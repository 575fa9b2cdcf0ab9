package services

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/rs/zerolog/log"

	"github.com/shelfwise/apiserver/internal/store"
	"github.com/shelfwise/apiserver/types"
)

// RegisterInput is the payload for account creation.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required),
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Password, validation.Required),
	)
}

// UserService encapsulates identity use-cases.
type UserService struct {
	store  *store.Store
	hasher PasswordHasher
}

func NewUserService(st *store.Store, hasher PasswordHasher) *UserService {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &UserService{store: st, hasher: hasher}
}

// Register creates an account with the user role. Emails are compared
// exactly, so addresses differing only in case are distinct accounts.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return types.User{}, ErrValidation.WithMessage(err.Error())
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return types.User{}, ErrPersistence.Wrap(err)
	}

	var user types.User
	err = s.store.InTx(ctx, func(tx *store.Tx) error {
		users := tx.Users()
		if _, err := users.GetByEmail(ctx, in.Email); err == nil {
			return ErrDuplicateEmail
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		user, err = users.Create(ctx, types.User{
			Name:         in.Name,
			Email:        in.Email,
			Role:         types.RoleUser,
			PasswordHash: hashed,
		})
		if errors.Is(err, store.ErrConflict) {
			return ErrDuplicateEmail
		}
		return err
	})
	if err != nil {
		return types.User{}, asServiceError(err)
	}

	log.Ctx(ctx).Info().Int("user_id", user.ID).Msg("user registered")
	return user, nil
}

// Authenticate verifies credentials and returns the matching user.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	var user types.User
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		user, err = tx.Users().GetByEmail(ctx, strings.TrimSpace(email))
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidUser
		}
		return types.User{}, ErrPersistence.Wrap(err)
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		return types.User{}, ErrInvalidPassword
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	var user types.User
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		user, err = tx.Users().GetByID(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUserNotFound
		}
		return types.User{}, ErrPersistence.Wrap(err)
	}
	return user, nil
}

// Profile returns the user with their library entries and reviews.
func (s *UserService) Profile(ctx context.Context, id int) (types.Profile, error) {
	var profile types.Profile
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		user, err := tx.Users().GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		library, err := tx.Library().ListByUser(ctx, id)
		if err != nil {
			return err
		}
		reviews, err := tx.Reviews().ListByUser(ctx, id)
		if err != nil {
			return err
		}
		profile = types.Profile{User: user, Library: library, Reviews: reviews}
		return nil
	})
	if err != nil {
		return types.Profile{}, asServiceError(err)
	}
	return profile, nil
}

func (s *UserService) ChangePassword(ctx context.Context, id int, password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return ErrPersistence.Wrap(err)
	}

	err = s.store.InTx(ctx, func(tx *store.Tx) error {
		return tx.Users().UpdatePassword(ctx, id, hashed)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return ErrPersistence.Wrap(err)
	}
	return nil
}

// Promote grants the admin role to the user registered under targetEmail.
// The actor must already be an admin.
func (s *UserService) Promote(ctx context.Context, actorID int, targetEmail string) (types.User, error) {
	var target types.User
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		actor, err := tx.Users().GetByID(ctx, actorID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotAdmin
			}
			return err
		}
		if !actor.IsAdmin() {
			return ErrNotAdmin
		}

		target, err = promote(ctx, tx, targetEmail)
		return err
	})
	if err != nil {
		return types.User{}, asServiceError(err)
	}

	log.Ctx(ctx).Info().
		Int("actor_id", actorID).
		Int("user_id", target.ID).
		Msg("user promoted to admin")
	return target, nil
}

// GrantAdmin promotes a user without an acting admin. It bootstraps the
// first admin account from the command line.
func (s *UserService) GrantAdmin(ctx context.Context, email string) (types.User, error) {
	var target types.User
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		target, err = promote(ctx, tx, email)
		return err
	})
	if err != nil {
		return types.User{}, asServiceError(err)
	}
	return target, nil
}

func promote(ctx context.Context, tx *store.Tx, email string) (types.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return types.User{}, ErrTargetNotFound
	}

	target, err := tx.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrTargetNotFound
		}
		return types.User{}, err
	}
	if target.IsAdmin() {
		return types.User{}, ErrAlreadyAdmin
	}
	if err := tx.Users().UpdateRole(ctx, target.ID, types.RoleAdmin); err != nil {
		return types.User{}, err
	}
	target.Role = types.RoleAdmin
	return target, nil
}

// asServiceError passes typed errors through and wraps anything else as a
// persistence failure.
func asServiceError(err error) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	return ErrPersistence.Wrap(err)
}
