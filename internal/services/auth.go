package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"civiceye/internal/apperror"
	"civiceye/internal/auth"
	"civiceye/internal/logger"
	"civiceye/internal/models"
	"civiceye/internal/store"
	"civiceye/internal/utils"

	"github.com/google/uuid"
)

const (
	minPasswordLength = 8
	// bcrypt only accepts up to 72 bytes.
	maxPasswordBytes = 72
)

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperror.Validation("password must be at least 8 characters")
	}
	if len(password) > maxPasswordBytes {
		return apperror.Validation("password must be at most 72 bytes")
	}
	return nil
}

// AuthService is the local stand-in for the hosted identity provider: it
// registers and logs in users and resolves provider tokens to user rows.
type AuthService struct {
	users  store.UserStore
	tokens *auth.JWTManager
}

func NewAuthService(users store.UserStore, tokens *auth.JWTManager) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.Validation("invalid email address")
	}
	return email, nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	name := utils.StripTags(in.Name)
	if name == "" {
		name = strings.Split(email, "@")[0]
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	u := &models.User{Email: email, Name: name, Password: hash, Role: models.RoleCitizen}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperror.Conflict("email already registered")
		}
		return nil, apperror.Internal(err)
	}
	logger.Log.WithField("user_id", u.ID).Info("User registered")
	return u, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	invalid := apperror.Unauthorized("invalid email or password")
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, invalid
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if u.Password == "" || !utils.CheckPasswordHash(password, u.Password) {
		return nil, invalid
	}
	return u, nil
}

// IssueToken returns a bearer token for u, or "" when tokens are disabled.
func (s *AuthService) IssueToken(u *models.User) (string, error) {
	if !s.tokens.Enabled() {
		return "", nil
	}
	token, err := s.tokens.GenerateToken(u.ID, u.Email, u.Name)
	if err != nil {
		return "", apperror.Internal(err)
	}
	return token, nil
}

func (s *AuthService) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := s.users.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NotFound("user")
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return u, nil
}

// UpdateProfileInput lists every field a user may change on their own
// account.
type UpdateProfileInput struct {
	Name *string `json:"name"`
}

func (s *AuthService) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (*models.User, error) {
	if in.Name == nil {
		return s.GetUser(ctx, id)
	}
	name := utils.StripTags(*in.Name)
	if name == "" || len([]rune(name)) > 100 {
		return nil, apperror.Validation("name must be between 1 and 100 characters")
	}
	u, err := s.users.UpdateUserName(ctx, id, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NotFound("user")
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return u, nil
}

// UserFromToken validates a bearer token. A provider user seen for the first
// time gets a citizen row keyed by the token subject.
func (s *AuthService) UserFromToken(ctx context.Context, token string) (*models.User, error) {
	if !s.tokens.Enabled() {
		return nil, apperror.Unauthorized("bearer tokens are not accepted")
	}
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindUnauthorized, "invalid or expired token")
	}

	u, err := s.users.GetUser(ctx, claims.Subject)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apperror.Internal(err)
	}
	if _, perr := uuid.Parse(claims.Subject); perr != nil || claims.Email == "" {
		return nil, apperror.Unauthorized("unknown user")
	}

	email, err := normalizeEmail(claims.Email)
	if err != nil {
		return nil, apperror.Unauthorized("token carries an invalid email")
	}
	name := utils.StripTags(claims.Name)
	if name == "" {
		name = strings.Split(email, "@")[0]
	}
	u = &models.User{ID: claims.Subject, Email: email, Name: name, Role: models.RoleCitizen}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, apperror.Internal(err)
		}
		// A concurrent request with the same token may have created the row.
		if existing, gerr := s.users.GetUser(ctx, claims.Subject); gerr == nil {
			return existing, nil
		}
		return nil, apperror.Conflict("email already belongs to another account")
	}
	logger.Log.WithField("user_id", u.ID).Info("Provisioned user from identity provider token")
	return u, nil
}

// EnsureAdmin creates the bootstrap administrator if no user has that email.
// Nothing happens when email or password is empty.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		if !existing.IsAdmin() {
			logger.Log.WithField("email", email).Warn("Bootstrap admin email belongs to a citizen account")
		}
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &models.User{Email: email, Name: "Administrator", Password: hash, Role: models.RoleAdmin}
	if err := s.users.CreateUser(ctx, admin); err != nil {
		return err
	}
	logger.Log.WithField("email", email).Info("Admin account created")
	return nil
}
