package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/PublicLifeLab/gehl-backend/internal/db"
	"github.com/PublicLifeLab/gehl-backend/internal/metrics"
	"github.com/PublicLifeLab/gehl-backend/internal/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPasswordMismatch = fmt.Errorf("%w: passwords do not match", utils.ErrValidation)
	ErrInvalidEmail     = fmt.Errorf("%w: invalid email address", utils.ErrValidation)
	ErrWeakPassword     = fmt.Errorf("%w: password must be at least 8 characters", utils.ErrValidation)
	ErrEmailTaken       = fmt.Errorf("%w: email already registered", utils.ErrConflict)
	ErrUserNotFound     = fmt.Errorf("user %w", utils.ErrNotFound)
)

const minPasswordLength = 8

// Validate checks a registration before anything touches the database.
func (r Registration) Validate() error {
	addr, err := mail.ParseAddress(strings.TrimSpace(r.Email))
	if err != nil || addr.Address != strings.TrimSpace(r.Email) {
		return ErrInvalidEmail
	}
	if r.Password != r.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if len(r.Password) < minPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// CreateUser registers a new user with a bcrypt-hashed password.
func CreateUser(ctx context.Context, reg Registration) (_ User, err error) {
	defer metrics.Observe("create_user", time.Now(), &err)

	if err := reg.Validate(); err != nil {
		return User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(reg.Email))
	user := User{
		UserID:         uuid.New(),
		Email:          &email,
		FirstName:      strings.TrimSpace(reg.FirstName),
		LastName:       strings.TrimSpace(reg.LastName),
		HashedPassword: string(hashed),
	}

	if err := db.DB.WithContext(ctx).Create(&user).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, db.Fail("create user", "INSERT INTO app_auth.users", []any{email}, err)
	}
	return user, nil
}

// FindByEmail resolves an email address to a user.
func FindByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := db.DB.WithContext(ctx).
		First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, fmt.Errorf("%w: no user with email %q", ErrUserNotFound, email)
	}
	if err != nil {
		return User{}, db.Fail("find user by email", "SELECT FROM app_auth.users WHERE email = $1", []any{email}, err)
	}
	return user, nil
}

// FindByID loads a user by id.
func FindByID(ctx context.Context, userID uuid.UUID) (User, error) {
	var user User
	err := db.DB.WithContext(ctx).First(&user, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return User{}, db.Fail("find user", "SELECT FROM app_auth.users WHERE user_id = $1", []any{userID}, err)
	}
	return user, nil
}

// EnsureUser creates a bare user record for userID if none exists. Used when
// access is granted to someone who has not signed up yet.
func EnsureUser(ctx context.Context, userID uuid.UUID) error {
	user := User{UserID: userID}
	err := db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&user).Error
	if err != nil {
		return db.Fail("ensure user", "INSERT INTO app_auth.users (user_id) ON CONFLICT DO NOTHING", []any{userID}, err)
	}
	return nil
}
