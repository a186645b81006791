// Package stats derives group-relative statistics from member contribution
// scores at evaluation time. Nothing here is persisted.
package stats

// MemberScore pairs a student with the score that counts for comparison:
// the adjusted score when an instructor set one, otherwise the calculated
// score.
type MemberScore struct {
	StudentID string
	Score     float64
}

// GroupStats is the derived view over one group's scores.
type GroupStats struct {
	GroupAverage float64
	// Actionable is false for degenerate groups (fewer than two members),
	// where "below average" is undefined and no case may ever be produced.
	Actionable bool
	// BelowAverage maps each member to their percentage below the group
	// average, 0 for members at or above it.
	BelowAverage map[string]float64
}

// Compute returns the group average and each member's percentage below it.
func Compute(members []MemberScore) GroupStats {
	gs := GroupStats{
		Actionable:   len(members) >= 2,
		BelowAverage: make(map[string]float64, len(members)),
	}
	if len(members) == 0 {
		return gs
	}

	sum := 0.0
	for _, m := range members {
		sum += m.Score
	}
	gs.GroupAverage = sum / float64(len(members))

	for _, m := range members {
		gs.BelowAverage[m.StudentID] = PercentageBelowAverage(gs.GroupAverage, m.Score)
	}
	return gs
}

// PercentageBelowAverage returns max(0, (avg-score)/avg*100). A zero or
// negative average short-circuits to 0 rather than dividing by zero.
func PercentageBelowAverage(avg, score float64) float64 {
	if avg <= 0 {
		return 0
	}
	pct := (avg - score) / avg * 100
	if pct < 0 {
		return 0
	}
	return pct
}
