package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shubham2003-jha/Backend-Project/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository    = (*PostgresUserRepo)(nil)
	_ ProfileRepository = (*PostgresProfileRepo)(nil)
)

const uniqueViolation = "23505"

const userColumns = `id, username, email, full_name, avatar_url, cover_image_url, password_hash, COALESCE(refresh_token, ''), created_at, updated_at`

// PostgresUserRepo implements UserRepository on a pgx pool.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	const query = `
INSERT INTO users (id, username, email, full_name, avatar_url, cover_image_url, password_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + userColumns

	row := r.db.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.FullName,
		user.AvatarURL,
		user.CoverImageURL,
		user.PasswordHash,
	)

	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.User{}, fmt.Errorf("create user: %w", ErrDuplicate)
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id int64) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("get user by id: %w", ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetByUsernameOrEmail(ctx context.Context, username, email string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $2 LIMIT 1`

	user, err := scanUser(r.db.QueryRow(ctx, query, username, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("get user by username or email: %w", ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("get user by username or email: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

// SetRefreshToken overwrites the stored refresh token. An empty token clears
// the column, terminating the session server-side.
func (r *PostgresUserRepo) SetRefreshToken(ctx context.Context, userID int64, token string) error {
	const query = `UPDATE users SET refresh_token = NULLIF($2, ''), updated_at = now() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, userID, token)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set refresh token: %w", ErrNotFound)
	}
	return nil
}

func (r *PostgresUserRepo) SetPasswordHash(ctx context.Context, userID int64, hash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, userID, hash)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set password hash: %w", ErrNotFound)
	}
	return nil
}

func (r *PostgresUserRepo) UpdateAccount(ctx context.Context, userID int64, fullName, email string) (domain.User, error) {
	const query = `
UPDATE users SET full_name = $2, email = $3, updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, userID, fullName, email))
	if err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
			return domain.User{}, fmt.Errorf("update account: %w", ErrDuplicate)
		case errors.Is(err, pgx.ErrNoRows):
			return domain.User{}, fmt.Errorf("update account: %w", ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("update account: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) SetAvatarURL(ctx context.Context, userID int64, url string) (domain.User, error) {
	return r.setImageURL(ctx, "avatar_url", userID, url)
}

func (r *PostgresUserRepo) SetCoverImageURL(ctx context.Context, userID int64, url string) (domain.User, error) {
	return r.setImageURL(ctx, "cover_image_url", userID, url)
}

func (r *PostgresUserRepo) setImageURL(ctx context.Context, column string, userID int64, url string) (domain.User, error) {
	query := fmt.Sprintf(`UPDATE users SET %s = $2, updated_at = now() WHERE id = $1 RETURNING %s`, column, userColumns)

	user, err := scanUser(r.db.QueryRow(ctx, query, userID, url))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("update %s: %w", column, ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("update %s: %w", column, err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FullName,
		&u.AvatarURL,
		&u.CoverImageURL,
		&u.PasswordHash,
		&u.RefreshToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// PostgresProfileRepo implements the computed channel queries.
type PostgresProfileRepo struct {
	db *pgxpool.Pool
}

func NewPostgresProfileRepo(pool *pgxpool.Pool) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: pool}
}

func (r *PostgresProfileRepo) ChannelProfile(ctx context.Context, username string, viewerID int64) (domain.ChannelProfile, error) {
	const query = `
SELECT u.id, u.username, u.full_name, u.email, u.avatar_url, u.cover_image_url,
       (SELECT count(*) FROM subscriptions s WHERE s.channel_id = u.id)    AS subscriber_count,
       (SELECT count(*) FROM subscriptions s WHERE s.subscriber_id = u.id) AS subscribed_to_count,
       EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = u.id AND s.subscriber_id = $2) AS is_subscribed
FROM users u
WHERE u.username = $1`

	var p domain.ChannelProfile
	err := r.db.QueryRow(ctx, query, username, viewerID).Scan(
		&p.ID,
		&p.Username,
		&p.FullName,
		&p.Email,
		&p.AvatarURL,
		&p.CoverImageURL,
		&p.SubscriberCount,
		&p.SubscribedToCount,
		&p.IsSubscribed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ChannelProfile{}, fmt.Errorf("channel profile: %w", ErrNotFound)
		}
		return domain.ChannelProfile{}, fmt.Errorf("channel profile: %w", err)
	}
	return p, nil
}

func (r *PostgresProfileRepo) WatchHistory(ctx context.Context, userID int64) ([]domain.WatchHistoryEntry, error) {
	const query = `
SELECT v.id, v.owner_id, v.title, v.thumbnail_url, v.video_url, v.duration, v.views, v.created_at,
       o.id, o.username, o.email, o.full_name, o.avatar_url, o.cover_image_url, o.created_at,
       w.watched_at
FROM watch_history w
JOIN videos v ON v.id = w.video_id
JOIN users o  ON o.id = v.owner_id
WHERE w.user_id = $1
ORDER BY w.watched_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("watch history: %w", err)
	}
	defer rows.Close()

	var entries []domain.WatchHistoryEntry
	for rows.Next() {
		var e domain.WatchHistoryEntry
		if err := rows.Scan(
			&e.Video.ID,
			&e.Video.OwnerID,
			&e.Video.Title,
			&e.Video.ThumbnailURL,
			&e.Video.VideoURL,
			&e.Video.Duration,
			&e.Video.Views,
			&e.Video.CreatedAt,
			&e.Owner.ID,
			&e.Owner.Username,
			&e.Owner.Email,
			&e.Owner.FullName,
			&e.Owner.AvatarURL,
			&e.Owner.CoverImageURL,
			&e.Owner.CreatedAt,
			&e.WatchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan watch history: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("watch history rows: %w", err)
	}
	return entries, nil
}
