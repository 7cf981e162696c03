package model

import "time"

// Assignment is the ordered clearing route of one resource.
type Assignment struct {
	ResourceID string   `json:"resource_id"`
	Segments   []string `json:"segments"`
}

// AllocationPlan is the output of one planning cycle. Exactly one plan is
// current at a time; superseded plans are discarded.
type AllocationPlan struct {
	ID            string       `json:"id"`
	GeneratedAt   time.Time    `json:"generated_at"`
	Assignments   []Assignment `json:"assignments"`
	RiskReduction float64      `json:"risk_reduction"`
}

// Empty reports whether the plan assigns no work.
func (p AllocationPlan) Empty() bool {
	for _, a := range p.Assignments {
		if len(a.Segments) > 0 {
			return false
		}
	}
	return true
}

// SegmentCount returns the total number of assigned segments.
func (p AllocationPlan) SegmentCount() int {
	n := 0
	for _, a := range p.Assignments {
		n += len(a.Segments)
	}
	return n
}
