package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL (lyceum.users).
//
// The pgx pool is owned by the caller; this store must not close it.
// Schema identifiers are validated and quoted to keep identifier
// injection impossible even with a misconfigured env.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the identity store (default "lyceum").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "lyceum",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const userColumns = `id, username, username_norm, email, email_norm, display_name, role, created_at`

// CreateUser inserts a new user with a hashed credential.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (CreateUserResult, error) {
	const op = "identity.CreateUser"

	if s == nil || s.pool == nil {
		return CreateUserResult{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
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

	users := s.table("users")
	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+users+` (
			id, username, username_norm, email, email_norm,
			display_name, role, password_hash, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, username, usernameNorm, email, emailNorm, trimToNil(in.DisplayName), string(role), hash, now)
	if err != nil {
		if field, ok := classifyUniqueViolation(err); ok {
			return CreateUserResult{}, ConflictError{Op: op, Field: field}
		}
		return CreateUserResult{}, err
	}

	return CreateUserResult{User: User{
		ID:           id,
		Username:     username,
		UsernameNorm: usernameNorm,
		Email:        email,
		EmailNorm:    emailNorm,
		DisplayName:  trimToNil(in.DisplayName),
		Role:         role,
		CreatedAt:    now,
	}}, nil
}

// GetUserByID loads a user by ULID.
func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	const op = "identity.GetUserByID"

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing user id"}
	}

	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM `+s.table("users")+`
		WHERE id = $1
	`, userID)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// GetUserAuthByUsername loads a user plus credential by normalized username.
func (s *PostgresStore) GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error) {
	return s.getUserAuth(ctx, "identity.GetUserAuthByUsername", "username_norm", NormalizeUsername(username))
}

// GetUserAuthByEmail loads a user plus credential by normalized email.
func (s *PostgresStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	return s.getUserAuth(ctx, "identity.GetUserAuthByEmail", "email_norm", NormalizeEmail(email))
}

func (s *PostgresStore) getUserAuth(ctx context.Context, op, column, ident string) (UserAuth, error) {
	if ident == "" {
		return UserAuth{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing identifier"}
	}

	var (
		u    User
		role string
		hash string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, username_norm, email, email_norm,
		       display_name, role, created_at, password_hash
		FROM `+s.table("users")+`
		WHERE `+column+` = $1
	`, ident).Scan(
		&u.ID,
		&u.Username,
		&u.UsernameNorm,
		&u.Email,
		&u.EmailNorm,
		&u.DisplayName,
		&role,
		&u.CreatedAt,
		&hash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return UserAuth{}, err
	}

	u.Role = ParseRole(role)
	return UserAuth{User: u, PasswordHash: hash}, nil
}

// ---- helpers ----

func (s *PostgresStore) table(name string) string {
	return fmt.Sprintf("%q.%q", s.schema, name)
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.UsernameNorm,
		&u.Email,
		&u.EmailNorm,
		&u.DisplayName,
		&role,
		&u.CreatedAt,
	)
	if err != nil {
		return User{}, err
	}
	u.Role = ParseRole(role)
	return u, nil
}

func trimToNil(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func classifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "username"):
		return "username", true
	case strings.Contains(pgErr.ConstraintName, "email"):
		return "email", true
	default:
		return "", true
	}
}
