package models

import (
	"fmt"
	"strings"
)

// TimeFrame is the sampling interval of a price series.
type TimeFrame string

const (
	Daily   TimeFrame = "daily"
	Weekly  TimeFrame = "weekly"
	Monthly TimeFrame = "monthly"
)

// AllTimeFrames returns the supported time frames in canonical order.
func AllTimeFrames() []TimeFrame { return []TimeFrame{Daily, Weekly, Monthly} }

// IsValid returns true if tf is a supported time frame.
func (tf TimeFrame) IsValid() bool {
	switch tf {
	case Daily, Weekly, Monthly:
		return true
	default:
		return false
	}
}

// Interval returns the upstream interval code for the time frame.
func (tf TimeFrame) Interval() string {
	switch tf {
	case Weekly:
		return "1wk"
	case Monthly:
		return "1mo"
	default:
		return "1d"
	}
}

// LookbackMultiplier scales a day count so coarser frames still receive enough points.
func (tf TimeFrame) LookbackMultiplier() int {
	switch tf {
	case Weekly:
		return 7
	case Monthly:
		return 31
	default:
		return 1
	}
}

// ParseTimeFrame converts a raw string into a TimeFrame.
func ParseTimeFrame(s string) (TimeFrame, error) {
	tf := TimeFrame(strings.ToLower(strings.TrimSpace(s)))
	if !tf.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeFrame, s)
	}
	return tf, nil
}

// ParseTimeFrames parses a list, removing duplicates. An empty list yields all frames.
func ParseTimeFrames(raw []string) ([]TimeFrame, error) {
	if len(raw) == 0 {
		return AllTimeFrames(), nil
	}
	seen := make(map[TimeFrame]struct{}, len(raw))
	out := make([]TimeFrame, 0, len(raw))
	for _, s := range raw {
		tf, err := ParseTimeFrame(s)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[tf]; ok {
			continue
		}
		seen[tf] = struct{}{}
		out = append(out, tf)
	}
	return out, nil
}
