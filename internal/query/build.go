package query

import (
	"time"

	"github.com/Shimizu-Technology/holo-search-api/internal/models"
)

// VideoType narrows results by content classification.
type VideoType string

const (
	VideoTypeAll   VideoType = "all"
	VideoTypeMusic VideoType = "music"
)

// CollabMode selects how multiple collaborator names combine.
type CollabMode string

const (
	CollabAny CollabMode = "or"
	CollabAll CollabMode = "and"
)

// FilterRequest is the structured, already-validated search input.
// Empty fields are pass-through.
type FilterRequest struct {
	TextQuery         string
	ChannelID         string
	VideoType         VideoType
	HideUnarchived    bool
	Years             []int
	Months            []int
	Dates             []time.Time // calendar days, UTC midnight
	CollaboratorNames []string
	CollaboratorMode  CollabMode
}

// Build translates a FilterRequest into a Predicate.
//
// Clause categories are ANDed. Temporal clauses are expressed as UTC
// half-open ranges over available_at so that a store can serve them from
// its chronological index.
func Build(r FilterRequest) Predicate {
	clauses := []Predicate{}

	if r.TextQuery != "" {
		clauses = append(clauses, ContainsFold(FieldTitle, r.TextQuery))
	}
	if r.ChannelID != "" {
		clauses = append(clauses, Eq(FieldChannelID, r.ChannelID))
	}
	if r.VideoType == VideoTypeMusic {
		clauses = append(clauses, In(FieldTopicID, models.MusicTopics...))
	}
	if r.HideUnarchived {
		clauses = append(clauses,
			Ne(FieldStatus, string(models.StatusMissing)),
			NotNull(FieldTopicID),
		)
	}

	clauses = append(clauses, yearMonthClause(r.Years, r.Months), datesClause(r.Dates))
	clauses = append(clauses, collabClause(r.CollaboratorNames, r.CollaboratorMode))

	return And(clauses...)
}

// Scope restricts to one channel and, when year > 0, one calendar year.
// The stats endpoints aggregate over this scope.
func Scope(channelID string, year int) Predicate {
	p := Eq(FieldChannelID, channelID)
	if year > 0 {
		return And(p, YearRange(year))
	}
	return p
}

// YearRange matches available_at within the given UTC calendar year.
func YearRange(year int) Predicate {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Range(FieldAvailableAt, from, from.AddDate(1, 0, 0))
}

// MonthRange matches available_at within the given UTC calendar month.
func MonthRange(year, month int) Predicate {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return Range(FieldAvailableAt, from, from.AddDate(0, 1, 0))
}

// DayRange matches available_at within the given UTC calendar day.
func DayRange(day time.Time) Predicate {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return Range(FieldAvailableAt, from, from.AddDate(0, 0, 1))
}

// yearMonthClause: years × months when both are set, years alone when only
// years are set. Months without years are not a valid filter and drop out.
func yearMonthClause(years, months []int) Predicate {
	if len(years) == 0 {
		return All()
	}
	var ranges []Predicate
	for _, y := range years {
		if len(months) == 0 {
			ranges = append(ranges, YearRange(y))
			continue
		}
		for _, m := range months {
			ranges = append(ranges, MonthRange(y, m))
		}
	}
	return Or(ranges...)
}

func datesClause(days []time.Time) Predicate {
	if len(days) == 0 {
		return All()
	}
	ranges := make([]Predicate, 0, len(days))
	for _, d := range days {
		ranges = append(ranges, DayRange(d))
	}
	return Or(ranges...)
}

// collabClause matches names as raw substrings of the upstream payload.
// Mention names are free text upstream, so a structured comparison would
// miss spelling variants.
func collabClause(names []string, mode CollabMode) Predicate {
	if len(names) == 0 {
		return All()
	}
	parts := make([]Predicate, 0, len(names))
	for _, name := range names {
		parts = append(parts, Contains(FieldRaw, name))
	}
	if mode == CollabAll {
		return And(parts...)
	}
	return Or(parts...)
}
