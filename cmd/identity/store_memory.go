package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. It backs dev mode, where
// Lyceum runs without Postgres; accounts do not survive a restart.
type MemoryStore struct {
	mu         sync.Mutex
	byID       map[string]memoryUser
	byUsername map[string]string // username_norm -> id
	byEmail    map[string]string // email_norm -> id
}

type memoryUser struct {
	user         User
	passwordHash string
}

// NewMemoryStore returns an empty in-memory identity store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]memoryUser),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// CreateUser inserts a new user with a hashed credential. Validation and
// error shapes track PostgresStore.CreateUser so callers cannot tell the
// stores apart.
func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (CreateUserResult, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return CreateUserResult{}, err
	}

	username := trimToNil(in.Username)
	email := trimToNil(in.Email)
	if username == nil && email == nil {
		return CreateUserResult{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "username or email required"}
	}
	if strings.TrimSpace(in.Password) == "" {
		return CreateUserResult{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing password"}
	}

	role := in.Role
	if !role.Valid() {
		role = RoleStudent
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return CreateUserResult{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error()}
	}

	id, err := NewULID(now)
	if err != nil {
		return CreateUserResult{}, err
	}

	var usernameNorm, emailNorm *string
	if username != nil {
		v := NormalizeUsername(*username)
		usernameNorm = &v
	}
	if email != nil {
		v := NormalizeEmail(*email)
		emailNorm = &v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if usernameNorm != nil {
		if _, dup := s.byUsername[*usernameNorm]; dup {
			return CreateUserResult{}, ConflictError{Op: op, Field: "username"}
		}
	}
	if emailNorm != nil {
		if _, dup := s.byEmail[*emailNorm]; dup {
			return CreateUserResult{}, ConflictError{Op: op, Field: "email"}
		}
	}

	u := User{
		ID:           id,
		Username:     username,
		UsernameNorm: usernameNorm,
		Email:        email,
		EmailNorm:    emailNorm,
		DisplayName:  trimToNil(in.DisplayName),
		Role:         role,
		CreatedAt:    now,
	}

	s.byID[id] = memoryUser{user: u, passwordHash: hash}
	if usernameNorm != nil {
		s.byUsername[*usernameNorm] = id
	}
	if emailNorm != nil {
		s.byEmail[*emailNorm] = id
	}

	return CreateUserResult{User: u}, nil
}

// GetUserByID loads a user by ULID.
func (s *MemoryStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	const op = "identity.GetUserByID"

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing user id"}
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[userID]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return rec.user, nil
}

// GetUserAuthByUsername loads a user plus credential by normalized username.
func (s *MemoryStore) GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error) {
	return s.getUserAuth(ctx, "identity.GetUserAuthByUsername", s.byUsername, NormalizeUsername(username))
}

// GetUserAuthByEmail loads a user plus credential by normalized email.
func (s *MemoryStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	return s.getUserAuth(ctx, "identity.GetUserAuthByEmail", s.byEmail, NormalizeEmail(email))
}

func (s *MemoryStore) getUserAuth(ctx context.Context, op string, index map[string]string, ident string) (UserAuth, error) {
	if ident == "" {
		return UserAuth{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing identifier"}
	}
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := index[ident]
	if !ok {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}
	rec, ok := s.byID[id]
	if !ok {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}
	return UserAuth{User: rec.user, PasswordHash: rec.passwordHash}, nil
}
