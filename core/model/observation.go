package model

import (
	"fmt"
	"time"
)

// SourceKind identifies the collaborator that produced an observation.
type SourceKind int

const (
	SourceSegmentation SourceKind = iota
	SourceClassification
	SourceWeather
)

// String returns a human-readable representation of the source kind.
func (k SourceKind) String() string {
	switch k {
	case SourceSegmentation:
		return "segmentation"
	case SourceClassification:
		return "classification"
	case SourceWeather:
		return "weather"
	default:
		return "unknown"
	}
}

// ParseSourceKind resolves a source-kind name as found on the wire.
func ParseSourceKind(name string) (SourceKind, error) {
	switch name {
	case "segmentation":
		return SourceSegmentation, nil
	case "classification":
		return SourceClassification, nil
	case "weather":
		return SourceWeather, nil
	default:
		return SourceWeather, fmt.Errorf("unknown source kind %q", name)
	}
}

// Observation is a single condition report for a segment. Risk carries a
// score in [0,1]; category-valued signals set Category instead and are
// mapped to a risk score on ingestion.
type Observation struct {
	SegmentID  string     `json:"segment_id"`
	Source     SourceKind `json:"source"`
	Risk       float64    `json:"risk"`
	Category   string     `json:"category,omitempty"`
	Confidence float64    `json:"confidence"`
	Timestamp  time.Time  `json:"timestamp"`
	Expiry     time.Time  `json:"expiry,omitempty"` // zero means no explicit expiry
}

// Expired reports whether the observation carries an explicit expiry in the past.
func (o Observation) Expired(now time.Time) bool {
	return !o.Expiry.IsZero() && now.After(o.Expiry)
}

// FusedState is the current fused estimate for one segment.
type FusedState struct {
	Risk      float64   `json:"risk"`
	UpdatedAt time.Time `json:"updated_at"`
	Stale     bool      `json:"stale"`
}
