package identity

import (
	"context"
	"time"
)

// User is Lyceum's canonical principal.
type User struct {
	ID           string
	Username     *string
	UsernameNorm *string
	Email        *string
	EmailNorm    *string

	DisplayName *string
	Role        Role

	CreatedAt time.Time
}

// UserAuth couples a User with its stored credential for login checks.
// PasswordHash never leaves the auth layer.
type UserAuth struct {
	User         User
	PasswordHash string
}

// CreateUserInput describes a signup request.
// At least one of Username or Email must be provided.
type CreateUserInput struct {
	Username    *string
	Email       *string
	DisplayName *string
	Password    string
	Role        Role
	Now         time.Time
}

// CreateUserResult returns the created user.
type CreateUserResult struct {
	User User
}

// Store is the identity persistence boundary.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (CreateUserResult, error)

	GetUserByID(ctx context.Context, userID string) (User, error)

	// Auth variants return the password hash for verification and must be
	// keyed on the normalized identifier.
	GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error)
	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)
}
