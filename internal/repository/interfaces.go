package repository

import (
	"context"
	"errors"

	"github.com/Shubham2003-jha/Backend-Project/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row. ErrDuplicate is
// returned when an insert or update violates a unique key.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate unique key")
)

// UserRepository exposes persistence for user accounts. SetRefreshToken is
// the only writer of the stored refresh token and updates that column alone;
// the write is last-write-wins and the database serializes concurrent
// updates to the same row.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
	GetByUsernameOrEmail(ctx context.Context, username, email string) (domain.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	SetRefreshToken(ctx context.Context, userID int64, token string) error
	SetPasswordHash(ctx context.Context, userID int64, hash string) error
	UpdateAccount(ctx context.Context, userID int64, fullName, email string) (domain.User, error)
	SetAvatarURL(ctx context.Context, userID int64, url string) (domain.User, error)
	SetCoverImageURL(ctx context.Context, userID int64, url string) (domain.User, error)
}

// ProfileRepository answers the computed channel queries that the document
// store's aggregation engine served in the original design.
type ProfileRepository interface {
	ChannelProfile(ctx context.Context, username string, viewerID int64) (domain.ChannelProfile, error)
	WatchHistory(ctx context.Context, userID int64) ([]domain.WatchHistoryEntry, error)
}

// ProfileCache fronts ChannelProfile lookups with a short-TTL cache. A nil
// result with nil error is a miss; cache failures are advisory only.
type ProfileCache interface {
	Get(ctx context.Context, username string, viewerID int64) (*domain.ChannelProfile, error)
	Set(ctx context.Context, username string, viewerID int64, profile domain.ChannelProfile) error
	Invalidate(ctx context.Context, username string) error
}
