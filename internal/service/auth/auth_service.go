package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/model"
	appredis "storefront/internal/redis"
	"storefront/internal/repository"
	"storefront/internal/utils"
	"storefront/pkg/log"
	pkgutils "storefront/pkg/utils"
)

// RegisterRequest register request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6,max=40"`
}

// LoginRequest login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// TokenResponse token response
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
	Role         string `json:"role"`
}

// Recorder receives login outcomes, typically for metrics
type Recorder interface {
	RecordUserLogin(status string)
}

// AuthService authentication service interface
type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*model.User, error)

	// Login issues an access and a refresh token
	Login(ctx context.Context, req *LoginRequest, ip string) (*TokenResponse, error)

	// Logout revokes the access token described by claims
	Logout(ctx context.Context, claims *utils.JWTClaims) error

	// ValidateToken accepts only the live, non-revoked access token of a user
	ValidateToken(ctx context.Context, token string) (*utils.JWTClaims, error)

	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// Options tunes login throttling and role assignment
type Options struct {
	MaxLoginAttempts int
	LoginLockout     time.Duration
	// AdminEmails register with the admin role
	AdminEmails []string
	Recorder    Recorder
}

// authService authentication service implementation
type authService struct {
	userRepo   repository.UserRepository
	jwtManager *utils.JWTManager
	redis      redis.Cmdable
	opts       Options
	admins     map[string]struct{}
}

var (
	errBadCredentials = pkgutils.NewError(pkgutils.CodeUnauthorized, "email or password incorrect")
	errTokenInvalid   = pkgutils.NewError(pkgutils.CodeUnauthorized, "token invalid or expired")
)

// NewAuthService creates an authentication service
func NewAuthService(
	userRepo repository.UserRepository,
	jwtManager *utils.JWTManager,
	redis redis.Cmdable,
	opts Options,
) AuthService {
	if opts.MaxLoginAttempts <= 0 {
		opts.MaxLoginAttempts = 5
	}
	if opts.LoginLockout <= 0 {
		opts.LoginLockout = 15 * time.Minute
	}
	admins := make(map[string]struct{}, len(opts.AdminEmails))
	for _, e := range opts.AdminEmails {
		admins[normalizeEmail(e)] = struct{}{}
	}
	return &authService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		redis:      redis,
		opts:       opts,
		admins:     admins,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register registers a user
func (s *authService) Register(ctx context.Context, req *RegisterRequest) (*model.User, error) {
	email := normalizeEmail(req.Email)
	if !pkgutils.IsValidEmail(email) {
		return nil, pkgutils.Validation("email must be a valid email address")
	}
	// the salt takes 32 of bcrypt's 72 input bytes
	if len(req.Password) < 6 || len(req.Password) > 40 {
		return nil, pkgutils.Validation("password must be 6 to 40 characters")
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, pkgutils.Internal(err, "failed to check email")
	}
	if exists {
		return nil, pkgutils.Conflict("email already registered")
	}

	salt, err := generateSalt()
	if err != nil {
		return nil, pkgutils.Internal(err, "failed to register")
	}
	passwordHash, err := hashPassword(req.Password + salt)
	if err != nil {
		return nil, pkgutils.Internal(err, "failed to register")
	}

	role := model.RoleUser
	if _, ok := s.admins[email]; ok {
		role = model.RoleAdmin
	}

	user := &model.User{
		Email:        email,
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: passwordHash,
		Salt:         salt,
		Role:         role,
		Status:       model.UserStatusNormal,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, pkgutils.Conflict("email already registered")
		}
		return nil, pkgutils.Internal(err, "failed to register")
	}

	log.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("User registered")
	return user, nil
}

// Login logs in a user
func (s *authService) Login(ctx context.Context, req *LoginRequest, ip string) (*TokenResponse, error) {
	email := normalizeEmail(req.Email)

	if err := s.checkLoginAttempts(ctx, email); err != nil {
		s.record("throttled")
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.recordLoginFailure(ctx, email)
			s.record("failed")
			return nil, errBadCredentials
		}
		return nil, pkgutils.Internal(err, "failed to load user")
	}

	if !verifyPassword(req.Password+user.Salt, user.PasswordHash) {
		s.recordLoginFailure(ctx, email)
		s.record("failed")
		log.WithFields(map[string]interface{}{
			"user_id": user.ID,
			"ip":      ip,
		}).Warn("Login failed")
		return nil, errBadCredentials
	}
	if !user.IsActive() {
		s.record("disabled")
		return nil, pkgutils.NewError(pkgutils.CodeForbidden, "account disabled")
	}

	tokens, err := s.issue(ctx, user.ID, user.Username, string(user.Role), true)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		log.WithError(err).Warn("Failed to update last login")
	}
	s.redis.Del(ctx, appredis.LoginAttemptsKey(email))
	s.record("success")

	log.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"ip":      ip,
	}).Info("User logged in")
	return tokens, nil
}

// issue signs tokens and stores the access token as the user's live session
func (s *authService) issue(ctx context.Context, userID uint64, username, role string, withRefresh bool) (*TokenResponse, error) {
	accessToken, err := s.jwtManager.GenerateAccessToken(userID, username, role)
	if err != nil {
		return nil, pkgutils.Internal(err, "failed to issue token")
	}

	resp := &TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.jwtManager.AccessTTL().Seconds()),
		TokenType:   "Bearer",
		Role:        role,
	}
	if withRefresh {
		resp.RefreshToken, err = s.jwtManager.GenerateRefreshToken(userID, username, role)
		if err != nil {
			return nil, pkgutils.Internal(err, "failed to issue token")
		}
	}

	if err := s.redis.Set(ctx, appredis.TokenKey(userID), accessToken, s.jwtManager.AccessTTL()).Err(); err != nil {
		return nil, pkgutils.Internal(err, "failed to store session")
	}
	return resp, nil
}

// Logout logs out a user
func (s *authService) Logout(ctx context.Context, claims *utils.JWTClaims) error {
	if err := s.redis.Del(ctx, appredis.TokenKey(claims.UserID)).Err(); err != nil {
		return pkgutils.Internal(err, "failed to end session")
	}

	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}
	if err := s.redis.Set(ctx, appredis.BlacklistKey(claims.ID), "1", ttl).Err(); err != nil {
		return pkgutils.Internal(err, "failed to revoke token")
	}

	log.WithField("user_id", claims.UserID).Info("User logged out")
	return nil
}

// ValidateToken validates a token
func (s *authService) ValidateToken(ctx context.Context, token string) (*utils.JWTClaims, error) {
	claims, err := s.jwtManager.ValidateToken(token, utils.TokenAccess)
	if err != nil {
		return nil, errTokenInvalid
	}

	if s.revoked(ctx, claims.ID) {
		return nil, errTokenInvalid
	}

	stored, err := s.redis.Get(ctx, appredis.TokenKey(claims.UserID)).Result()
	if err != nil || stored != token {
		return nil, errTokenInvalid
	}
	return claims, nil
}

func (s *authService) revoked(ctx context.Context, tokenID string) bool {
	n, err := s.redis.Exists(ctx, appredis.BlacklistKey(tokenID)).Result()
	// fail closed when the blacklist cannot be read
	return err != nil || n > 0
}

// RefreshToken refreshes a token
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	claims, err := s.jwtManager.ValidateToken(refreshToken, utils.TokenRefresh)
	if err != nil || s.revoked(ctx, claims.ID) {
		return nil, errTokenInvalid
	}

	resp, err := s.issue(ctx, claims.UserID, claims.Username, claims.Role, false)
	if err != nil {
		return nil, err
	}
	resp.RefreshToken = refreshToken
	return resp, nil
}

func (s *authService) checkLoginAttempts(ctx context.Context, email string) error {
	attempts, err := s.redis.Get(ctx, appredis.LoginAttemptsKey(email)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.WithError(err).Warn("Failed to read login attempts")
		return nil
	}
	if attempts >= s.opts.MaxLoginAttempts {
		return pkgutils.NewError(pkgutils.CodeRateLimit, "too many failed logins, try again later")
	}
	return nil
}

func (s *authService) recordLoginFailure(ctx context.Context, email string) {
	key := appredis.LoginAttemptsKey(email)
	pipe := s.redis.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.opts.LoginLockout)
	if _, err := pipe.Exec(ctx); err != nil {
		log.WithError(err).Warn("Failed to record login failure")
	}
}

func (s *authService) record(status string) {
	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordUserLogin(status)
	}
}

func generateSalt() (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return hex.EncodeToString(salt), nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
