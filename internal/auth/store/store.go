package store

import (
	"context"
	"errors"
	"time"

	"github.com/arvicollection/authcore/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement this
// and expose sub-repositories to keep concerns tidy and testable.
//
// Every Update method is an atomic read-modify-write of a single record: fn
// receives the current value, and whatever it leaves in place is persisted.
// If fn returns an error nothing is written and the error is returned as is.
type Store interface {
	Users() Users
	VerificationCodes() VerificationCodes
	Challenges() Challenges
	PasswordResets() PasswordResets

	// Ping verifies the backing storage is still reachable.
	Ping(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks a user up by normalised email, used during login
	// and password reset.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user and returns it with its assigned id.
	// Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)

	// UpdateUser atomically mutates a user.
	UpdateUser(ctx context.Context, id string, fn func(*domain.User) error) (domain.User, error)
}

type VerificationCodes interface {
	// CreateCode stores a newly issued code.
	CreateCode(ctx context.Context, c domain.VerificationCode) (domain.VerificationCode, error)

	// ListOpenCodes returns the user's codes for purpose that are neither used
	// nor locked, oldest first. Expired codes are included.
	ListOpenCodes(ctx context.Context, userID string, purpose domain.Purpose) ([]domain.VerificationCode, error)

	// UpdateCode atomically mutates a code.
	UpdateCode(ctx context.Context, id string, fn func(*domain.VerificationCode) error) (domain.VerificationCode, error)

	// DeleteCodesExpiredBefore removes codes whose expiry is before cutoff.
	DeleteCodesExpiredBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type Challenges interface {
	// CreateChallenge stores a new pending challenge.
	CreateChallenge(ctx context.Context, c domain.MFAChallenge) (domain.MFAChallenge, error)

	// GetChallenge returns a challenge by its public challenge id.
	GetChallenge(ctx context.Context, challengeID string) (domain.MFAChallenge, error)

	// UpdateChallenge atomically mutates a challenge, looked up by its public id.
	UpdateChallenge(ctx context.Context, challengeID string, fn func(*domain.MFAChallenge) error) (domain.MFAChallenge, error)

	// DeleteChallengesExpiredBefore removes challenges whose expiry is before cutoff.
	DeleteChallengesExpiredBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type PasswordResets interface {
	// CreateReset stores a new reset request.
	CreateReset(ctx context.Context, r domain.PasswordResetRequest) (domain.PasswordResetRequest, error)

	// GetOpenReset returns the unused request carrying token.
	GetOpenReset(ctx context.Context, token string) (domain.PasswordResetRequest, error)

	// UpdateReset atomically mutates a request, looked up by its token.
	UpdateReset(ctx context.Context, token string, fn func(*domain.PasswordResetRequest) error) (domain.PasswordResetRequest, error)

	// DeleteResetsExpiredBefore removes requests whose expiry is before cutoff.
	DeleteResetsExpiredBefore(ctx context.Context, cutoff time.Time) (int, error)
}
