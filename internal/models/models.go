// Package models defines the data structures used throughout the application.
//
// Models are plain structs with JSON tags for serialization and `db` tags
// for sqlx column mapping. The database package handles persistence.
package models

import (
	"encoding/json"
	"time"
)

// VideoStatus is the upstream lifecycle tag of a video.
type VideoStatus string

const (
	StatusPast    VideoStatus = "past"
	StatusMissing VideoStatus = "missing" // removed or privated upstream after being seen
)

// Topic IDs with special meaning for filters and aggregation.
const (
	TopicOriginalSong = "Original_Song"
	TopicMusicCover   = "Music_Cover"
	TopicMembersOnly  = "membersonly"
)

// MusicTopics jointly denote "music" videos.
var MusicTopics = []string{TopicOriginalSong, TopicMusicCover}

// AdministrativeTopics are tags that describe how a video was published
// rather than what it is about. They never count toward topic popularity.
var AdministrativeTopics = []string{"membersonly", "shorts", "announce", "watchalong", "morning"}

// Mention is another channel or person appearing in a video.
type Mention struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	EnglishName string `json:"english_name,omitempty"`
	Photo       string `json:"photo,omitempty"`
}

// Video is one mirrored upstream video record.
//
// The promoted columns exist for indexing and filtering; Raw keeps the
// complete upstream payload so nothing is lost by projection.
type Video struct {
	ID          string          `json:"id" db:"id"`
	Title       string          `json:"title" db:"title"`
	ChannelID   string          `json:"channel_id" db:"channel_id"`
	ChannelName string          `json:"channel_name" db:"channel_name"`
	PublishedAt *time.Time      `json:"published_at,omitempty" db:"published_at"`
	AvailableAt time.Time       `json:"available_at" db:"available_at"`
	Duration    *int            `json:"duration,omitempty" db:"duration"` // seconds; nil for live/unfinished
	Status      VideoStatus     `json:"status" db:"status"`
	Type        string          `json:"type" db:"type"`
	TopicID     *string         `json:"topic_id,omitempty" db:"topic_id"`
	Mentions    []Mention       `json:"mentions,omitempty" db:"-"`
	Raw         json.RawMessage `json:"-" db:"raw"`
}

// Topic returns the topic tag or "" when the video has none.
func (v *Video) Topic() string {
	if v.TopicID == nil {
		return ""
	}
	return *v.TopicID
}

// MarshalJSON serves the upstream payload verbatim when it is available,
// so API consumers see every field the upstream sent.
func (v Video) MarshalJSON() ([]byte, error) {
	if len(v.Raw) > 0 {
		return v.Raw, nil
	}
	type plain Video
	return json.Marshal(plain(v))
}

// upstreamVideo mirrors the upstream JSON object shape.
type upstreamVideo struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Type        string  `json:"type"`
	TopicID     *string `json:"topic_id"`
	PublishedAt *string `json:"published_at"`
	AvailableAt *string `json:"available_at"`
	Duration    *int    `json:"duration"`
	Status      string  `json:"status"`
	Channel     struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		EnglishName string `json:"english_name"`
	} `json:"channel"`
	ChannelID string    `json:"channel_id"`
	Mentions  []Mention `json:"mentions"`
}

// DecodeVideo projects an upstream payload into a Video, retaining raw.
//
// available_at falls back to published_at when the upstream omits it; a
// payload with neither timestamp or without an id is rejected.
func DecodeVideo(raw json.RawMessage) (*Video, error) {
	var u upstreamVideo
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, errMissingID
	}

	v := &Video{
		ID:          u.ID,
		Title:       u.Title,
		ChannelID:   u.Channel.ID,
		ChannelName: u.Channel.Name,
		Duration:    u.Duration,
		Status:      VideoStatus(u.Status),
		Type:        u.Type,
		Mentions:    u.Mentions,
		Raw:         append(json.RawMessage(nil), raw...),
	}
	if v.ChannelID == "" {
		v.ChannelID = u.ChannelID
	}
	if u.TopicID != nil && *u.TopicID != "" {
		topic := *u.TopicID
		v.TopicID = &topic
	}

	published, err := parseTimestamp(u.PublishedAt)
	if err != nil {
		return nil, err
	}
	v.PublishedAt = published

	available, err := parseTimestamp(u.AvailableAt)
	if err != nil {
		return nil, err
	}
	switch {
	case available != nil:
		v.AvailableAt = *available
	case published != nil:
		v.AvailableAt = *published
	default:
		return nil, errMissingTimestamp
	}
	return v, nil
}

// DecodeMentions extracts the mention list from a raw payload.
func DecodeMentions(raw json.RawMessage) ([]Mention, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var payload struct {
		Mentions []Mention `json:"mentions"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload.Mentions, nil
}

func parseTimestamp(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

// --- Sync DTOs ---

// SyncStatus is a point-in-time snapshot of the ingestion progress.
type SyncStatus struct {
	RunID              string     `json:"runId,omitempty"`
	Running            bool       `json:"isSyncing"`
	FullSync           bool       `json:"fullSync"`
	TotalChannels      int        `json:"totalChannels"`
	SyncedChannels     int        `json:"syncedChannels"`
	CurrentChannelName string     `json:"currentChannel,omitempty"`
	TotalVideosFetched int64      `json:"totalVideos"`
	TotalVideosNew     int64      `json:"totalNewVideos"`
	CancelRequested    bool       `json:"cancelled"`
	StartedAt          *time.Time `json:"startedAt,omitempty"`
	LastCompletedAt    *time.Time `json:"lastSyncTime,omitempty"`
}

// ChannelRef names a channel in a sync request.
type ChannelRef struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name"`
}

// TriggerSyncRequest is the JSON body for POST /api/sync.
type TriggerSyncRequest struct {
	APIKey   string       `json:"apiKey"`
	FullSync bool         `json:"fullSync"`
	Channels []ChannelRef `json:"channels"`
}

// --- Search DTOs ---

// SearchParams holds the raw query parameters of GET /api/search.
// Validation and parsing happen in the query package.
type SearchParams struct {
	Query          string `form:"q"`
	ChannelID      string `form:"channel_id"`
	Limit          *int   `form:"limit"`
	Offset         int    `form:"offset"`
	Collab         string `form:"collab"`
	CollabMode     string `form:"collab_mode"`
	HideUnarchived string `form:"hide_unarchived"`
	FilterDates    string `form:"filter_dates"`
	FilterYears    string `form:"filter_years"`
	FilterMonths   string `form:"filter_months"`
	VideoType      string `form:"video_type"`
}

// SearchResponse is returned by GET /api/search.
type SearchResponse struct {
	Items []Video `json:"items"`
	Total int     `json:"total"`
}

// ItemsResponse wraps list responses of the stats endpoints.
type ItemsResponse[T any] struct {
	Items []T `json:"items"`
}

// --- Stats DTOs ---

// YearCount is one row of a yearly grouping.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// MonthCount is one row of a monthly grouping; Month is 1-12.
type MonthCount struct {
	Month int `json:"month"`
	Count int `json:"count"`
}

// TopicCount is one row of the topic popularity ranking.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// CollaboratorCount is one row of the collaborator ranking.
type CollaboratorCount struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Photo string `json:"photo"`
	Count int    `json:"count"`
}

// --- Auth DTOs ---

// TokenResponse is returned by POST /api/auth/token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorResponse is a standard error format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Store   string `json:"store"`
	Workers int    `json:"workers"`
	Queued  int    `json:"queued"` // store jobs waiting for a worker
	Syncing bool   `json:"syncing"`
}
