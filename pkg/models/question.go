package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTimeRange is returned when a range ends before it starts.
var ErrInvalidTimeRange = errors.New("invalid time range")

// TimeRange bounds a question query by creation time. Nil ends are open.
type TimeRange struct {
	Start *time.Time
	End   *time.Time
}

// Validate rejects ranges that end before they start.
func (r TimeRange) Validate() error {
	if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		return fmt.Errorf("%w: end %s is before start %s", ErrInvalidTimeRange, r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	return nil
}

// ParseTimeBound parses one end of a TimeRange given as an RFC 3339
// timestamp or a YYYY-MM-DD date. An empty value is an open end. A date-only
// end bound covers that whole day.
func ParseTimeBound(v string, end bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a date (want YYYY-MM-DD or RFC 3339)", ErrInvalidTimeRange, v)
	}
	if end {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// IsOpen reports whether neither end is set.
func (r TimeRange) IsOpen() bool {
	return r.Start == nil && r.End == nil
}

// DocumentQuestions is one referenced document with the distinct questions
// that led to it.
type DocumentQuestions struct {
	DocumentSource string
	ReferenceCount int64
	Questions      []string
}

// QuestionRecord is one logged question as stored by a question source.
type QuestionRecord struct {
	CreatedAt      time.Time
	OrgID          string
	QuestionText   string
	DocumentSource string
}
