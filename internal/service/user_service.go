package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Shubham2003-jha/Backend-Project/internal/adapter/media"
	"github.com/Shubham2003-jha/Backend-Project/internal/apierr"
	"github.com/Shubham2003-jha/Backend-Project/internal/domain"
	"github.com/Shubham2003-jha/Backend-Project/internal/password"
	"github.com/Shubham2003-jha/Backend-Project/internal/repository"
	"github.com/Shubham2003-jha/Backend-Project/internal/token"
)

// UserService encapsulates account and session flows.
type UserService struct {
	users        repository.UserRepository
	profiles     repository.ProfileRepository
	profileCache repository.ProfileCache
	uploader     media.Uploader
	issuer       *token.Issuer
	snowflake    *snowflake.Node
	logger       *zap.Logger
	tracer       trace.Tracer
}

// NewUserService wires dependencies.
func NewUserService(users repository.UserRepository, profiles repository.ProfileRepository, profileCache repository.ProfileCache, uploader media.Uploader, issuer *token.Issuer, node *snowflake.Node, logger *zap.Logger) *UserService {
	return &UserService{
		users:        users,
		profiles:     profiles,
		profileCache: profileCache,
		uploader:     uploader,
		issuer:       issuer,
		snowflake:    node,
		logger:       logger,
		tracer:       otel.Tracer("github.com/Shubham2003-jha/Backend-Project/internal/service"),
	}
}

// RegisterInput carries the registration form. Avatar is required; the cover
// image slot may be empty.
type RegisterInput struct {
	FullName       string
	Email          string
	Username       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// LoginResult bundles the sanitized user with the freshly issued pair.
type LoginResult struct {
	User   domain.PublicUser `json:"user"`
	Tokens token.Pair        `json:"-"`
}

// Register validates the form, uploads media, and only then persists the
// account. A failed upload must not leave a partially created record.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (domain.PublicUser, error) {
	ctx, span := s.startSpan(ctx, "UserService.Register")
	defer span.End()

	username := normalizeIdentifier(in.Username)
	email := normalizeIdentifier(in.Email)
	if strings.TrimSpace(in.FullName) == "" || email == "" || username == "" || strings.TrimSpace(in.Password) == "" {
		return domain.PublicUser{}, apierr.Validation("All fields are required")
	}
	if in.AvatarPath == "" {
		return domain.PublicUser{}, apierr.Validation("Avatar file is required")
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		span.RecordError(err)
		return domain.PublicUser{}, fmt.Errorf("check existing user: %w", err)
	}
	if exists {
		return domain.PublicUser{}, apierr.Conflict("User with this email or username already exists")
	}

	avatarURL, err := s.uploader.Upload(ctx, in.AvatarPath)
	if err != nil {
		span.RecordError(err)
		s.log().Warn("avatar upload failed", zap.Error(err))
		return domain.PublicUser{}, apierr.Upstream("Avatar upload failed")
	}

	coverURL := ""
	if in.CoverImagePath != "" {
		coverURL, err = s.uploader.Upload(ctx, in.CoverImagePath)
		if err != nil {
			span.RecordError(err)
			s.log().Warn("cover image upload failed", zap.Error(err))
			return domain.PublicUser{}, apierr.Upstream("Cover image upload failed")
		}
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		span.RecordError(err)
		return domain.PublicUser{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.Create(ctx, domain.User{
		ID:            s.snowflake.Generate().Int64(),
		Username:      username,
		Email:         email,
		FullName:      strings.TrimSpace(in.FullName),
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
		PasswordHash:  hash,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.PublicUser{}, apierr.Conflict("User with this email or username already exists")
		}
		span.RecordError(err)
		return domain.PublicUser{}, fmt.Errorf("create user: %w", err)
	}

	s.audit("user.register.success", "user_id", created.ID)
	return created.Public(), nil
}

// Login verifies credentials, issues a token pair, and persists the refresh
// token as the account's single active session.
func (s *UserService) Login(ctx context.Context, usernameOrEmail, plaintext string) (LoginResult, error) {
	ctx, span := s.startSpan(ctx, "UserService.Login")
	defer span.End()

	identifier := normalizeIdentifier(usernameOrEmail)
	if identifier == "" || plaintext == "" {
		return LoginResult{}, apierr.Validation("Username or email and password are required")
	}

	user, err := s.users.GetByUsernameOrEmail(ctx, identifier, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return LoginResult{}, apierr.NotFound("User does not exist")
		}
		span.RecordError(err)
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}

	if !password.Verify(plaintext, user.PasswordHash) {
		return LoginResult{}, apierr.Unauthorized("Invalid user credentials")
	}

	pair, err := s.startSession(ctx, user.ID)
	if err != nil {
		span.RecordError(err)
		return LoginResult{}, err
	}

	s.audit("user.login.success", "user_id", user.ID)
	return LoginResult{User: user.Public(), Tokens: pair}, nil
}

// Logout clears the stored refresh token. Access tokens already issued stay
// valid until natural expiry.
func (s *UserService) Logout(ctx context.Context, userID int64) error {
	ctx, span := s.startSpan(ctx, "UserService.Logout")
	defer span.End()

	if err := s.users.SetRefreshToken(ctx, userID, ""); err != nil {
		span.RecordError(err)
		return fmt.Errorf("clear refresh token: %w", err)
	}

	s.audit("user.logout.success", "user_id", userID)
	return nil
}

// Refresh validates a presented refresh token, detects reuse of a rotated
// token by exact comparison with the stored copy, and on success rotates the
// pair. Each call is stateless apart from the stored token.
func (s *UserService) Refresh(ctx context.Context, presented string) (LoginResult, error) {
	ctx, span := s.startSpan(ctx, "UserService.Refresh")
	defer span.End()

	if presented == "" {
		return LoginResult{}, apierr.Unauthorized("Refresh token is missing")
	}

	userID, err := s.issuer.Verify(presented, token.Refresh)
	if err != nil {
		return LoginResult{}, apierr.Unauthorized("Invalid or expired refresh token")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return LoginResult{}, apierr.Unauthorized("Invalid refresh token")
		}
		span.RecordError(err)
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}

	// Reuse check: a rotated-out or forged token never matches the stored
	// copy, even when its signature still verifies.
	if user.RefreshToken == "" || user.RefreshToken != presented {
		s.audit("user.refresh.reuse_detected", "user_id", user.ID)
		return LoginResult{}, apierr.Unauthorized("Refresh token is expired or already used")
	}

	pair, err := s.startSession(ctx, user.ID)
	if err != nil {
		span.RecordError(err)
		return LoginResult{}, err
	}

	s.audit("user.refresh.success", "user_id", user.ID)
	return LoginResult{User: user.Public(), Tokens: pair}, nil
}

// Authenticate resolves an access token to its sanitized identity. Used by
// the auth middleware on every protected request.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (domain.PublicUser, error) {
	ctx, span := s.startSpan(ctx, "UserService.Authenticate")
	defer span.End()

	if accessToken == "" {
		return domain.PublicUser{}, apierr.Unauthorized("Access token is missing")
	}

	userID, err := s.issuer.Verify(accessToken, token.Access)
	if err != nil {
		return domain.PublicUser{}, apierr.Unauthorized("Invalid or expired access token")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.PublicUser{}, apierr.Unauthorized("Unknown user for access token")
		}
		span.RecordError(err)
		return domain.PublicUser{}, fmt.Errorf("load user: %w", err)
	}

	return user.Public(), nil
}

// ChangePassword verifies the old password before storing the new hash.
func (s *UserService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	ctx, span := s.startSpan(ctx, "UserService.ChangePassword")
	defer span.End()

	if oldPassword == "" || newPassword == "" {
		return apierr.Validation("Old and new password are required")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load user: %w", err)
	}

	if !password.Verify(oldPassword, user.PasswordHash) {
		return apierr.Unauthorized("Invalid old password")
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.SetPasswordHash(ctx, userID, hash); err != nil {
		span.RecordError(err)
		return fmt.Errorf("store password hash: %w", err)
	}

	s.audit("user.password_change.success", "user_id", userID)
	return nil
}

// startSession mints a pair and persists the refresh token, replacing any
// previous session (last write wins).
func (s *UserService) startSession(ctx context.Context, userID int64) (token.Pair, error) {
	pair, err := s.issuer.IssuePair(userID)
	if err != nil {
		return token.Pair{}, fmt.Errorf("issue token pair: %w", err)
	}
	if err := s.users.SetRefreshToken(ctx, userID, pair.RefreshToken); err != nil {
		return token.Pair{}, fmt.Errorf("persist refresh token: %w", err)
	}
	return pair, nil
}

func (s *UserService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *UserService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *UserService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

func normalizeIdentifier(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
