package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/habithive/internal/crypto"
	"github.com/and161185/habithive/internal/errs"
	"github.com/and161185/habithive/internal/limiter"
	"github.com/and161185/habithive/internal/model"
	"github.com/and161185/habithive/internal/repository"
)

// AuthService defines account operations.
type AuthService interface {
	// Register creates the account and the user's profile document.
	Register(ctx context.Context, email, password string, profile model.User) (uid string, err error)
	// Login applies rate limiting per (email, device) and issues a token.
	Login(ctx context.Context, email, password, device string) (model.Tokens, string, error)
	// Verify returns the uid a token was issued for.
	Verify(token string) (string, error)
	// ChangePassword replaces the account password.
	ChangePassword(ctx context.Context, uid, password string) error
}

type AuthServiceImpl struct {
	accounts  repository.AccountRepository
	users     UserSync
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
	hash      pkgcrypto.Params
	log       *zap.Logger
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(accounts repository.AccountRepository, users UserSync, signKey []byte, accessTTL time.Duration, lim limiter.Limiter, log *zap.Logger) *AuthServiceImpl {
	if lim == nil {
		lim = limiter.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{
		accounts:  accounts,
		users:     users,
		signKey:   signKey,
		accessTTL: accessTTL,
		lim:       lim,
		hash:      pkgcrypto.DefaultParams,
		log:       log,
	}
}

func normEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Register stores an account and writes users/{uid}. If the profile
// document cannot be written the account is removed again so the email
// stays free. A failing mirror write does not fail registration.
func (s *AuthServiceImpl) Register(ctx context.Context, email, password string, profile model.User) (string, error) {
	email = normEmail(email)
	if email == "" || password == "" {
		return "", fmt.Errorf("%w: empty email/password", errs.ErrInvalid)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	hash, salt, err := s.hash.New(password)
	if err != nil {
		return "", err
	}
	acc := &model.Account{ID: id, Email: email, PwdHash: hash, Salt: salt}
	if err := s.accounts.Create(ctx, acc); err != nil {
		return "", err
	}

	profile.UID = id.String()
	profile.Email = email
	res, err := s.users.Create(ctx, profile)
	if err != nil && !res.RemoteOK {
		if derr := s.accounts.Delete(ctx, id); derr != nil {
			s.log.Error("register: account cleanup failed", zap.String("uid", profile.UID), zap.Error(derr))
		}
		return "", err
	}
	if err != nil {
		s.log.Warn("register: profile not mirrored", zap.String("uid", profile.UID), zap.Error(err))
	}
	return profile.UID, nil
}

// Login authenticates with rate limiting by (email, device).
func (s *AuthServiceImpl) Login(ctx context.Context, email, password, device string) (model.Tokens, string, error) {
	email = normEmail(email)
	dev := limiter.DeviceHash(device)

	allowed, _, err := s.lim.Allow(ctx, email, dev)
	if err != nil {
		return model.Tokens{}, "", err
	}
	if !allowed {
		return model.Tokens{}, "", errs.ErrRateLimited
	}

	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil || !s.hash.Verify(password, acc.Salt, acc.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, email, dev); ferr == nil && blocked {
			return model.Tokens{}, "", errs.ErrRateLimited
		}
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			s.log.Warn("login: account lookup failed", zap.Error(err))
		}
		// unknown email and wrong password look the same
		return model.Tokens{}, "", errs.ErrUnauthorized
	}

	if err := s.lim.Success(ctx, email, dev); err != nil {
		s.log.Warn("login: limiter reset failed", zap.Error(err))
	}

	access, exp, err := s.issueAccessToken(acc.ID)
	if err != nil {
		return model.Tokens{}, "", err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, acc.ID.String(), nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(id uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   id.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// Verify checks signature and expiry and returns the subject.
func (s *AuthServiceImpl) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return "", fmt.Errorf("%w: bad subject", errs.ErrUnauthorized)
	}
	return id.String(), nil
}

// ChangePassword rehashes under a new salt.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, uid, password string) error {
	if password == "" {
		return fmt.Errorf("%w: empty password", errs.ErrInvalid)
	}
	id, err := uuid.FromString(uid)
	if err != nil {
		return fmt.Errorf("%w: bad uid", errs.ErrInvalid)
	}
	hash, salt, err := s.hash.New(password)
	if err != nil {
		return err
	}
	return s.accounts.SetPassword(ctx, id, hash, salt)
}
