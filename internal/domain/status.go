package domain

import (
	"strings"
	"time"
)

// Status is the liveness state of a service.
type Status string

const (
	StatusUnknown Status = "UNKNOWN"
	StatusOK      Status = "OK"
	StatusFail    Status = "FAIL"
)

// ParseStatus maps a stored value onto a Status. Anything unrecognised,
// including the empty string, is UNKNOWN.
func ParseStatus(s string) Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(StatusOK):
		return StatusOK
	case string(StatusFail):
		return StatusFail
	default:
		return StatusUnknown
	}
}

func (s Status) String() string { return string(s) }

// StatusUpdate is a pending status write. It only lives inside the status
// queue until a batch flush persists it.
type StatusUpdate struct {
	URL    string
	Status Status
}

// Check is the observation produced by a single probe.
type Check struct {
	URL       string        `json:"url"`
	Status    Status        `json:"status"`
	CheckedAt time.Time     `json:"checked_at"`
	Latency   time.Duration `json:"-"`
	LatencyMS int64         `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
}

// NewCheck builds a Check and derives the millisecond latency.
func NewCheck(url string, status Status, checkedAt time.Time, latency time.Duration, err error) Check {
	c := Check{
		URL:       url,
		Status:    status,
		CheckedAt: checkedAt,
		Latency:   latency,
		LatencyMS: latency.Milliseconds(),
	}
	if err != nil {
		c.Error = err.Error()
	}
	return c
}
