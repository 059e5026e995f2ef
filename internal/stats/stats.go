// Package stats folds stored videos into grouped and ranked summaries.
//
// Every operation is a read-only scan over one channel's videos, optionally
// limited to a calendar year. Grouping happens in Go rather than SQL so the
// Postgres and in-memory stores produce identical results.
//
// Ties in the ranked outputs keep first-encountered order. Scans run in
// ascending available_at order, so among equal counts the entity or topic
// seen earliest in the channel's history ranks first.
package stats

import (
	"context"
	"sort"
	"strings"

	"github.com/Shimizu-Technology/holo-search-api/internal/models"
	"github.com/Shimizu-Technology/holo-search-api/internal/query"
	"github.com/Shimizu-Technology/holo-search-api/internal/store"
)

const (
	DefaultTopCollaborators = 30
	DefaultTopTopics        = 10
	unknownName             = "Unknown"
)

// Options configures an Aggregator. Zero values fall back to defaults.
type Options struct {
	// MembershipKeywords are title fragments marking members-only videos,
	// matched case-insensitively.
	MembershipKeywords []string
	// TopicExclude lists topics left out of the popularity ranking.
	TopicExclude     []string
	TopCollaborators int
	TopTopics        int
}

// Aggregator computes statistics over a Record Store.
type Aggregator struct {
	store            store.Store
	keywords         []string
	topicExclude     map[string]bool
	topCollaborators int
	topTopics        int
}

// New creates an Aggregator reading from s.
func New(s store.Store, opts Options) *Aggregator {
	a := &Aggregator{
		store:            s,
		topicExclude:     make(map[string]bool),
		topCollaborators: opts.TopCollaborators,
		topTopics:        opts.TopTopics,
	}
	if a.topCollaborators <= 0 {
		a.topCollaborators = DefaultTopCollaborators
	}
	if a.topTopics <= 0 {
		a.topTopics = DefaultTopTopics
	}
	for _, k := range opts.MembershipKeywords {
		if k = strings.TrimSpace(k); k != "" {
			a.keywords = append(a.keywords, strings.ToLower(k))
		}
	}
	exclude := opts.TopicExclude
	if exclude == nil {
		exclude = models.AdministrativeTopics
	}
	for _, t := range exclude {
		a.topicExclude[t] = true
	}
	return a
}

// IsMembersOnly reports whether v is members-only content: either tagged
// as such or carrying one of the configured title keywords.
func (a *Aggregator) IsMembersOnly(v *models.Video) bool {
	if v.Topic() == models.TopicMembersOnly {
		return true
	}
	title := strings.ToLower(v.Title)
	for _, k := range a.keywords {
		if strings.Contains(title, k) {
			return true
		}
	}
	return false
}

// YearlyCounts groups a channel's videos by calendar year, ascending.
func (a *Aggregator) YearlyCounts(ctx context.Context, channelID string) ([]models.YearCount, error) {
	return a.yearly(ctx, channelID, nil)
}

// YearlyMembershipCounts is YearlyCounts restricted to members-only videos.
func (a *Aggregator) YearlyMembershipCounts(ctx context.Context, channelID string) ([]models.YearCount, error) {
	return a.yearly(ctx, channelID, a.IsMembersOnly)
}

// MonthlyCounts groups one year of a channel's videos by month. The result
// always has 12 entries, January first.
func (a *Aggregator) MonthlyCounts(ctx context.Context, channelID string, year int) ([]models.MonthCount, error) {
	return a.monthly(ctx, channelID, year, nil)
}

// MonthlyMembershipCounts is MonthlyCounts restricted to members-only videos.
func (a *Aggregator) MonthlyMembershipCounts(ctx context.Context, channelID string, year int) ([]models.MonthCount, error) {
	return a.monthly(ctx, channelID, year, a.IsMembersOnly)
}

func (a *Aggregator) yearly(ctx context.Context, channelID string, keep func(*models.Video) bool) ([]models.YearCount, error) {
	counts := map[int]int{}
	err := a.store.Scan(ctx, query.Scope(channelID, 0), func(v *models.Video) error {
		if keep == nil || keep(v) {
			counts[v.AvailableAt.UTC().Year()]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.YearCount, 0, len(counts))
	for y, n := range counts {
		out = append(out, models.YearCount{Year: y, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

func (a *Aggregator) monthly(ctx context.Context, channelID string, year int, keep func(*models.Video) bool) ([]models.MonthCount, error) {
	var counts [12]int
	err := a.store.Scan(ctx, query.Scope(channelID, year), func(v *models.Video) error {
		if keep == nil || keep(v) {
			counts[v.AvailableAt.UTC().Month()-1]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.MonthCount, 12)
	for i := range out {
		out[i] = models.MonthCount{Month: i + 1, Count: counts[i]}
	}
	return out, nil
}

// TopicPopularity ranks a channel's topics by video count. year <= 0
// covers the channel's whole history. Untagged videos and excluded topics
// do not participate.
func (a *Aggregator) TopicPopularity(ctx context.Context, channelID string, year int) ([]models.TopicCount, error) {
	index := map[string]int{}
	var out []models.TopicCount

	err := a.store.Scan(ctx, query.Scope(channelID, year), func(v *models.Video) error {
		topic := v.Topic()
		if topic == "" || a.topicExclude[topic] {
			return nil
		}
		if i, ok := index[topic]; ok {
			out[i].Count++
			return nil
		}
		index[topic] = len(out)
		out = append(out, models.TopicCount{Topic: topic, Count: 1})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > a.topTopics {
		out = out[:a.topTopics]
	}
	if out == nil {
		out = []models.TopicCount{}
	}
	return out, nil
}

// CollaboratorStats ranks the entities mentioned in a channel's videos.
// year <= 0 covers the channel's whole history.
//
// Each entity keeps the first non-empty name seen for it. A photo is only
// ever filled in, never replaced. Mentions without an id are skipped.
func (a *Aggregator) CollaboratorStats(ctx context.Context, channelID string, year int) ([]models.CollaboratorCount, error) {
	index := map[string]int{}
	var out []models.CollaboratorCount

	err := a.store.Scan(ctx, query.Scope(channelID, year), func(v *models.Video) error {
		mentions := v.Mentions
		if mentions == nil {
			decoded, err := models.DecodeMentions(v.Raw)
			if err != nil {
				// payload predates mentions or is not an object; nothing to count
				return nil
			}
			mentions = decoded
		}

		for _, m := range mentions {
			if m.ID == "" {
				continue
			}
			name := m.Name
			if name == "" {
				name = m.EnglishName
			}

			i, ok := index[m.ID]
			if !ok {
				index[m.ID] = len(out)
				out = append(out, models.CollaboratorCount{ID: m.ID, Name: name, Photo: m.Photo, Count: 1})
				continue
			}
			c := &out[i]
			c.Count++
			if c.Name == "" {
				c.Name = name
			}
			if c.Photo == "" {
				c.Photo = m.Photo
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > a.topCollaborators {
		out = out[:a.topCollaborators]
	}
	for i := range out {
		if out[i].Name == "" {
			out[i].Name = unknownName
		}
	}
	if out == nil {
		out = []models.CollaboratorCount{}
	}
	return out, nil
}
