package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/NordCoder/GetMoreSeo/internal/domain/apikey"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const keyScheme = "gms"

type Config struct {
	Secret     []byte
	SessionTTL time.Duration
	Now        func() time.Time
}

type Usecase struct {
	keys apikey.Repo
	cfg  Config
	log  *zap.Logger
}

func NewUseCase(keys apikey.Repo, cfg Config, log *zap.Logger) *Usecase {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{keys: keys, cfg: cfg, log: log.With(zap.String("component", "auth"))}
}

// IssueAPIKey creates a key of the form gms_<prefix>_<secret>. Only the
// bcrypt hash of the secret is stored; the raw key is returned once.
func (u *Usecase) IssueAPIKey(ctx context.Context, userID uuid.UUID) (string, *apikey.Key, error) {
	prefix, err := randomHex(4)
	if err != nil {
		return "", nil, fmt.Errorf("gen prefix: %w", err)
	}
	secret, err := randomToken(24)
	if err != nil {
		return "", nil, fmt.Errorf("gen secret: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash key: %w", err)
	}
	k := &apikey.Key{
		UserID:    userID,
		Prefix:    prefix,
		KeyHash:   string(hash),
		IsActive:  true,
		CreatedAt: u.cfg.Now(),
	}
	if err := u.keys.Create(ctx, k); err != nil {
		return "", nil, err
	}
	return keyScheme + "_" + prefix + "_" + secret, k, nil
}

// VerifyAPIKey returns the owner of raw.
func (u *Usecase) VerifyAPIKey(ctx context.Context, raw string) (uuid.UUID, error) {
	prefix, secret, ok := splitKey(raw)
	if !ok {
		return uuid.Nil, ErrInvalidCredentials
	}
	k, err := u.keys.FindByPrefix(ctx, prefix)
	if err != nil || !k.IsActive {
		return uuid.Nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(secret)) != nil {
		return uuid.Nil, ErrInvalidCredentials
	}
	if err := u.keys.Touch(ctx, k.ID, u.cfg.Now()); err != nil {
		u.log.Warn("touch api key", zap.Int64("key_id", k.ID), zap.Error(err))
	}
	return k.UserID, nil
}

func splitKey(raw string) (prefix, secret string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(raw), "_", 3)
	if len(parts) != 3 || parts[0] != keyScheme || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// IssueSession signs an HS256 session token for userID.
func (u *Usecase) IssueSession(userID uuid.UUID) (string, error) {
	now := u.cfg.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(u.cfg.SessionTTL)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(u.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return s, nil
}

func (u *Usecase) ParseSession(token string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return u.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(u.cfg.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return uuid.Nil, ErrInvalidCredentials
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidCredentials
	}
	return id, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// no underscores, so the key still splits into three parts
	return strings.ReplaceAll(base64.RawURLEncoding.EncodeToString(b), "_", "-"), nil
}
