package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Shubham2003-jha/Backend-Project/internal/apierr"
	"github.com/Shubham2003-jha/Backend-Project/internal/domain"
	"github.com/Shubham2003-jha/Backend-Project/internal/repository"
)

// UpdateAccount changes the mutable profile fields.
func (s *UserService) UpdateAccount(ctx context.Context, userID int64, fullName, email string) (domain.PublicUser, error) {
	ctx, span := s.startSpan(ctx, "UserService.UpdateAccount")
	defer span.End()

	normalized := normalizeIdentifier(email)
	if fullName == "" || normalized == "" {
		return domain.PublicUser{}, apierr.Validation("Full name and email are required")
	}

	user, err := s.users.UpdateAccount(ctx, userID, fullName, normalized)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return domain.PublicUser{}, apierr.Conflict("Email already in use")
		case errors.Is(err, repository.ErrNotFound):
			return domain.PublicUser{}, apierr.NotFound("User does not exist")
		}
		span.RecordError(err)
		return domain.PublicUser{}, fmt.Errorf("update account: %w", err)
	}

	s.invalidateProfile(ctx, user.Username)
	s.audit("user.account_update.success", "user_id", userID)
	return user.Public(), nil
}

// UpdateAvatar uploads a replacement avatar and stores its URL.
func (s *UserService) UpdateAvatar(ctx context.Context, userID int64, localPath string) (domain.PublicUser, error) {
	return s.updateImage(ctx, "UserService.UpdateAvatar", userID, localPath, "Avatar", s.users.SetAvatarURL)
}

// UpdateCoverImage uploads a replacement cover image and stores its URL.
func (s *UserService) UpdateCoverImage(ctx context.Context, userID int64, localPath string) (domain.PublicUser, error) {
	return s.updateImage(ctx, "UserService.UpdateCoverImage", userID, localPath, "Cover image", s.users.SetCoverImageURL)
}

func (s *UserService) updateImage(ctx context.Context, spanName string, userID int64, localPath, label string, store func(context.Context, int64, string) (domain.User, error)) (domain.PublicUser, error) {
	ctx, span := s.startSpan(ctx, spanName)
	defer span.End()

	if localPath == "" {
		return domain.PublicUser{}, apierr.Validation(label + " file is required")
	}

	url, err := s.uploader.Upload(ctx, localPath)
	if err != nil {
		span.RecordError(err)
		s.log().Warn("media upload failed", zap.Error(err))
		return domain.PublicUser{}, apierr.Upstream(label + " upload failed")
	}

	user, err := store(ctx, userID, url)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.PublicUser{}, apierr.NotFound("User does not exist")
		}
		span.RecordError(err)
		return domain.PublicUser{}, fmt.Errorf("store image url: %w", err)
	}

	s.invalidateProfile(ctx, user.Username)
	return user.Public(), nil
}

// ChannelProfile computes the channel summary for username as seen by
// viewerID, consulting the cache first.
func (s *UserService) ChannelProfile(ctx context.Context, username string, viewerID int64) (domain.ChannelProfile, error) {
	ctx, span := s.startSpan(ctx, "UserService.ChannelProfile")
	defer span.End()

	normalized := normalizeIdentifier(username)
	if normalized == "" {
		return domain.ChannelProfile{}, apierr.Validation("Username is required")
	}

	if s.profileCache != nil {
		cached, err := s.profileCache.Get(ctx, normalized, viewerID)
		if err != nil {
			s.log().Warn("profile cache read failed", zap.Error(err))
		} else if cached != nil {
			return *cached, nil
		}
	}

	profile, err := s.profiles.ChannelProfile(ctx, normalized, viewerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ChannelProfile{}, apierr.NotFound("Channel does not exist")
		}
		span.RecordError(err)
		return domain.ChannelProfile{}, fmt.Errorf("channel profile: %w", err)
	}

	if s.profileCache != nil {
		if err := s.profileCache.Set(ctx, normalized, viewerID, profile); err != nil {
			s.log().Warn("profile cache write failed", zap.Error(err))
		}
	}
	return profile, nil
}

// WatchHistory lists the user's watched videos, most recent first.
func (s *UserService) WatchHistory(ctx context.Context, userID int64) ([]domain.WatchHistoryEntry, error) {
	ctx, span := s.startSpan(ctx, "UserService.WatchHistory")
	defer span.End()

	entries, err := s.profiles.WatchHistory(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("watch history: %w", err)
	}
	if entries == nil {
		entries = []domain.WatchHistoryEntry{}
	}
	return entries, nil
}

func (s *UserService) invalidateProfile(ctx context.Context, username string) {
	if s.profileCache == nil {
		return
	}
	if err := s.profileCache.Invalidate(ctx, username); err != nil {
		s.log().Warn("profile cache invalidation failed", zap.Error(err))
	}
}
