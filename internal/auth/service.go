package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/salon-pos/internal/common"
)

// ErrInvalidCredentials is returned when the email/password pair does not match.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ErrInactiveUser is returned for disabled staff accounts.
var ErrInactiveUser = errors.New("auth: account disabled")

// StaffUser is a staff account able to sign in to the register.
type StaffUser struct {
	ID           string
	Email        string
	DisplayName  string
	Role         string
	BranchID     string
	PasswordHash string
	Status       string
}

// Service authenticates staff and issues access tokens.
type Service struct {
	Pool      *pgxpool.Pool
	Secret    []byte
	Issuer    string
	AccessTTL time.Duration
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.AccessTTL <= 0 {
		return 12 * time.Hour
	}
	return s.AccessTTL
}

// HashPassword produces an argon2id hash for storage.
func HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, argon2id.DefaultParams)
}

// Login verifies credentials and returns a signed access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, StaffUser, error) {
	if s == nil || s.Pool == nil {
		return "", StaffUser{}, errors.New("auth service not configured")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", StaffUser{}, ErrInvalidCredentials
	}
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", StaffUser{}, ErrInvalidCredentials
		}
		return "", StaffUser{}, err
	}
	ok, err := argon2id.ComparePasswordAndHash(password, user.PasswordHash)
	if err != nil {
		return "", StaffUser{}, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return "", StaffUser{}, ErrInvalidCredentials
	}
	if user.Status != "active" {
		return "", StaffUser{}, ErrInactiveUser
	}
	token, _, err := s.SignAccessToken(user)
	if err != nil {
		return "", StaffUser{}, err
	}
	return token, user, nil
}

// GetUser loads a staff account by identifier.
func (s *Service) GetUser(ctx context.Context, id string) (StaffUser, error) {
	if s == nil || s.Pool == nil {
		return StaffUser{}, errors.New("auth service not configured")
	}
	const q = `SELECT id, email, display_name, role, branch_id, password_hash, status
		FROM staff_users WHERE id = $1`
	var user StaffUser
	err := s.Pool.QueryRow(ctx, q, id).Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.Role,
		&user.BranchID, &user.PasswordHash, &user.Status,
	)
	return user, err
}

func (s *Service) userByEmail(ctx context.Context, email string) (StaffUser, error) {
	const q = `SELECT id, email, display_name, role, branch_id, password_hash, status
		FROM staff_users WHERE lower(email) = $1`
	var user StaffUser
	err := s.Pool.QueryRow(ctx, q, email).Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.Role,
		&user.BranchID, &user.PasswordHash, &user.Status,
	)
	return user, err
}

// SignAccessToken issues a signed JWT carrying the staff's role and branch.
func (s *Service) SignAccessToken(user StaffUser) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl())
	token, err := jwt.NewBuilder().
		Subject(user.ID).
		Issuer(s.Issuer).
		IssuedAt(now).
		Expiration(expiresAt).
		Claim("role", user.Role).
		Claim("branch", user.BranchID).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, s.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

// ParseAccessToken validates a token and returns the staff identity it carries.
func (s *Service) ParseAccessToken(token string) (common.Staff, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return common.Staff{}, errors.New("auth: token missing")
	}
	parsed, err := jwt.ParseString(trimmed,
		jwt.WithKey(jwa.HS256, s.Secret),
		jwt.WithIssuer(s.Issuer),
		jwt.WithClock(jwt.ClockFunc(s.now)),
		jwt.WithValidate(true),
	)
	if err != nil {
		return common.Staff{}, fmt.Errorf("auth: invalid token: %w", err)
	}
	staff := common.Staff{UserID: parsed.Subject()}
	if role, ok := parsed.Get("role"); ok {
		staff.Role, _ = role.(string)
	}
	if branch, ok := parsed.Get("branch"); ok {
		staff.BranchID, _ = branch.(string)
	}
	if staff.UserID == "" {
		return common.Staff{}, errors.New("auth: token missing subject")
	}
	return staff, nil
}
