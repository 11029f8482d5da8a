package domain

import "time"

// Video is the subset of video metadata the account service needs for watch
// history responses.
type Video struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"ownerId"`
	Title        string    `json:"title"`
	ThumbnailURL string    `json:"thumbnail"`
	VideoURL     string    `json:"videoFile"`
	Duration     float64   `json:"duration"`
	Views        int64     `json:"views"`
	CreatedAt    time.Time `json:"createdAt"`
}

// WatchHistoryEntry is one watched video joined with its owner's public
// channel fields.
type WatchHistoryEntry struct {
	Video     Video      `json:"video"`
	Owner     PublicUser `json:"owner"`
	WatchedAt time.Time  `json:"watchedAt"`
}
