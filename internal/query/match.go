package query

import (
	"strings"

	"github.com/Shimizu-Technology/holo-search-api/internal/models"
)

// Match evaluates p against a single video.
//
// Null handling mirrors SQL: a nil topic never satisfies a comparison, only
// fails NotNull. Case folding uses strings.ToLower, which agrees with
// Postgres ILIKE for the scripts titles are written in.
func Match(p Predicate, v *models.Video) bool {
	switch p.Op {
	case OpAll:
		return true
	case OpAnd:
		for _, c := range p.Children {
			if !Match(c, v) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range p.Children {
			if Match(c, v) {
				return true
			}
		}
		return false
	case OpRange:
		if p.Field != FieldAvailableAt {
			return false
		}
		t := v.AvailableAt
		return !t.Before(p.From) && t.Before(p.To)
	}

	value, ok := fieldValue(p.Field, v)
	switch p.Op {
	case OpNotNull:
		return ok
	case OpEq:
		return ok && value == p.Value
	case OpNe:
		return ok && value != p.Value
	case OpContains:
		return ok && strings.Contains(value, p.Value)
	case OpContainsFold:
		return ok && strings.Contains(strings.ToLower(value), strings.ToLower(p.Value))
	case OpIn:
		if !ok {
			return false
		}
		for _, candidate := range p.Values {
			if value == candidate {
				return true
			}
		}
		return false
	}
	return false
}

// fieldValue returns the string form of a field and whether it is non-null.
func fieldValue(f Field, v *models.Video) (string, bool) {
	switch f {
	case FieldID:
		return v.ID, true
	case FieldTitle:
		return v.Title, true
	case FieldChannelID:
		return v.ChannelID, true
	case FieldStatus:
		return string(v.Status), true
	case FieldTopicID:
		if v.TopicID == nil {
			return "", false
		}
		return *v.TopicID, true
	case FieldRaw:
		return string(v.Raw), len(v.Raw) > 0
	}
	return "", false
}
