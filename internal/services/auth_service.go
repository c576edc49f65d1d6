package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-quetras-backend/internal/auth"
	"github.com/tbourn/go-quetras-backend/internal/domain"
	"github.com/tbourn/go-quetras-backend/internal/storage"
)

var credentialsValidate = validator.New(validator.WithRequiredStructEnabled())

// RegisterInput is a new account request.
type RegisterInput struct {
	Name     string `validate:"required,max=120"`
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=6,max=72"`
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(u domain.User) (string, time.Time, error)
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      domain.User
}

// AuthService manages accounts stored as one JSON array under
// storage.KeyUsers.
type AuthService struct {
	KV     storage.KV
	Key    string
	Tokens TokenIssuer
	Log    zerolog.Logger

	mu sync.Mutex
}

// NewAuthService returns an AuthService over kv.
func NewAuthService(kv storage.KV, tokens TokenIssuer, log zerolog.Logger) *AuthService {
	return &AuthService{KV: kv, Key: storage.KeyUsers, Tokens: tokens, Log: log}
}

// Register creates a student account. Emails are unique, compared
// case-insensitively.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	_, span := otel.Tracer("services/AuthService").Start(ctx, "Register")
	defer span.End()
	return s.create(ctx, in, domain.RoleStudent)
}

// Login verifies credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Login")
	defer span.End()

	s.mu.Lock()
	users, err := s.load(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	u, ok := findByEmail(users, email)
	if !ok || !auth.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	tok, exp, err := s.Tokens.Issue(u)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: tok, ExpiresAt: exp, User: u}, nil
}

// Get returns the user with id.
func (s *AuthService) Get(ctx context.Context, id string) (*domain.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.load(ctx)
	if err != nil {
		return nil, false, err
	}
	for _, u := range users {
		if u.ID == id {
			return &u, true, nil
		}
	}
	return nil, false, nil
}

// EnsureAdmin seeds an admin account when no user has that email. It
// reports whether a user was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, in RegisterInput) (bool, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "EnsureAdmin",
		trace.WithAttributes(attribute.String("user.email", in.Email)))
	defer span.End()

	_, err := s.create(ctx, in, domain.RoleAdmin)
	if errors.Is(err, ErrEmailTaken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.Log.Info().Str("email", in.Email).Msg("admin account created")
	return true, nil
}

func (s *AuthService) create(ctx context.Context, in RegisterInput, role domain.Role) (*domain.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := credentialsValidate.Struct(in); err != nil {
		return nil, credentialErrors(err)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if _, taken := findByEmail(users, in.Email); taken {
		return nil, ErrEmailTaken
	}
	u := domain.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	users = append(users, u)
	b, err := json.Marshal(users)
	if err != nil {
		return nil, err
	}
	if err := s.KV.Set(ctx, s.Key, b); err != nil {
		s.Log.Error().Err(err).Msg("user store write failed")
		return nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return &u, nil
}

// load decodes the user list. Malformed content reads as empty, like the
// query store.
func (s *AuthService) load(ctx context.Context) ([]domain.User, error) {
	raw, ok, err := s.KV.Get(ctx, s.Key)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var users []domain.User
	if err := json.Unmarshal(raw, &users); err != nil {
		storeParseFailures.WithLabelValues("users").Inc()
		s.Log.Error().Err(err).Msg("user store content malformed; treating as empty")
		return nil, nil
	}
	return users, nil
}

func findByEmail(users []domain.User, email string) (domain.User, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return domain.User{}, false
}

func credentialErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalid(domain.FieldError{Field: "input", Rule: "invalid"})
	}
	fields := make([]domain.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, domain.FieldError{Field: strings.ToLower(fe.StructField()), Rule: fe.Tag()})
	}
	return invalid(fields...)
}
