package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Shimizu-Technology/holo-search-api/internal/models"
)

// ErrInvalidFilter is wrapped by every validation failure in this package.
var ErrInvalidFilter = errors.New("invalid filter")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFilter, fmt.Sprintf(format, args...))
}

// ParseSearch validates raw search parameters and builds a FilterRequest.
// Validation happens before any query runs; blank values are pass-through.
func ParseSearch(p models.SearchParams) (FilterRequest, error) {
	req := FilterRequest{
		TextQuery: p.Query,
		ChannelID: strings.TrimSpace(p.ChannelID),
	}

	var err error
	if req.VideoType, err = ParseVideoType(p.VideoType); err != nil {
		return FilterRequest{}, err
	}
	if req.CollaboratorMode, err = ParseCollabMode(p.CollabMode); err != nil {
		return FilterRequest{}, err
	}
	if req.Years, err = ParseYears(p.FilterYears); err != nil {
		return FilterRequest{}, err
	}
	if req.Months, err = ParseMonths(p.FilterMonths); err != nil {
		return FilterRequest{}, err
	}
	if req.Dates, err = ParseDates(p.FilterDates); err != nil {
		return FilterRequest{}, err
	}
	req.HideUnarchived = parseFlag(p.HideUnarchived)
	req.CollaboratorNames = splitList(p.Collab)
	return req, nil
}

// ParsePage applies the default limit and range-checks limit and offset.
func ParsePage(limit *int, offset, defaultLimit, maxLimit int) (int, int, error) {
	l := defaultLimit
	if limit != nil {
		l = *limit
	}
	if l < 1 || l > maxLimit {
		return 0, 0, invalid("limit must be between 1 and %d", maxLimit)
	}
	if offset < 0 {
		return 0, 0, invalid("offset must not be negative")
	}
	return l, offset, nil
}

// ParseVideoType accepts "", "all" or "music".
func ParseVideoType(s string) (VideoType, error) {
	switch VideoType(strings.ToLower(strings.TrimSpace(s))) {
	case "", VideoTypeAll:
		return VideoTypeAll, nil
	case VideoTypeMusic:
		return VideoTypeMusic, nil
	}
	return "", invalid("video_type must be 'all' or 'music'")
}

// ParseCollabMode accepts "", "or" or "and". The default is "or".
func ParseCollabMode(s string) (CollabMode, error) {
	switch CollabMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", CollabAny:
		return CollabAny, nil
	case CollabAll:
		return CollabAll, nil
	}
	return "", invalid("collab_mode must be 'or' or 'and'")
}

// ParseYears parses a comma-separated list of years.
func ParseYears(s string) ([]int, error) {
	years, err := parseInts(s, "filter_years")
	if err != nil {
		return nil, err
	}
	for _, y := range years {
		if y < 1 || y > 9999 {
			return nil, invalid("filter_years: %d is out of range", y)
		}
	}
	return years, nil
}

// ParseMonths parses a comma-separated list of months, each 1-12.
func ParseMonths(s string) ([]int, error) {
	months, err := parseInts(s, "filter_months")
	if err != nil {
		return nil, err
	}
	for _, m := range months {
		if m < 1 || m > 12 {
			return nil, invalid("filter_months: %d is not a month", m)
		}
	}
	return months, nil
}

// ParseDates parses a comma-separated list of YYYY-MM-DD days.
func ParseDates(s string) ([]time.Time, error) {
	var days []time.Time
	seen := map[time.Time]bool{}
	for _, part := range splitList(s) {
		d, err := time.Parse(time.DateOnly, part)
		if err != nil {
			return nil, invalid("filter_dates: %q is not a YYYY-MM-DD date", part)
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	return days, nil
}

func parseInts(s, name string) ([]int, error) {
	var out []int
	seen := map[int]bool{}
	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, invalid("%s must be comma-separated integers", name)
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out, nil
}

// splitList splits on commas, trimming blanks away.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}
