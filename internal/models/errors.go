package models

import "errors"

var (
	errMissingID        = errors.New("video payload has no id")
	errMissingTimestamp = errors.New("video payload has neither available_at nor published_at")
)
