package scoring

// Weights holds the four project-configurable coefficients of the
// contribution formula, expressed as percentages. The canonical mapping is
// W1 task completion, W2 peer review, W3 commit contribution, W4 late-task
// penalty.
type Weights struct {
	TaskCompletion float64 `json:"task_completion" yaml:"task_completion"`
	PeerReview     float64 `json:"peer_review" yaml:"peer_review"`
	Commit         float64 `json:"commit" yaml:"commit"`
	LatePenalty    float64 `json:"late_penalty" yaml:"late_penalty"`
}

// DefaultWeights returns an equal split across the three positive signals
// plus the late penalty.
func DefaultWeights() Weights {
	return Weights{
		TaskCompletion: 25,
		PeerReview:     25,
		Commit:         25,
		LatePenalty:    25,
	}
}

// Valid reports whether all coefficients are non-negative.
func (w Weights) Valid() bool {
	return w.TaskCompletion >= 0 && w.PeerReview >= 0 && w.Commit >= 0 && w.LatePenalty >= 0
}

// Signals are the pre-aggregated inputs for one student in one project.
// The engine does not know how they were produced.
type Signals struct {
	TaskCompletionPct float64 // 0-100
	PeerReviewAvg     float64 // average received rating on the 1-5 scale, 0 when no reviews
	CommitCount       int
	GroupAvgCommits   float64
	LateTaskCount     int
}

// MaxRating is the top of the peer-review rating scale.
const MaxRating = 5.0

// NormalizePeerScore maps an average 1-5 rating onto the 0-100 scale the
// formula operates on.
func NormalizePeerScore(avgRating float64) float64 {
	return clamp(avgRating/MaxRating*100, 0, 100)
}

// NormalizeCommitScore expresses a student's commit count as a percentage of
// the group average, capped at 100. A zero group average carries no signal,
// so it short-circuits to full credit rather than penalizing the whole group.
func NormalizeCommitScore(commits int, groupAvg float64) float64 {
	if groupAvg <= 0 {
		return 100
	}
	return clamp(float64(commits)/groupAvg*100, 0, 100)
}

// Compute applies the project weights to the signals:
//
//	score = (W1*task + W2*peer + W3*commit)/100 - (W4/100)*lateTasks
//
// clamped to a floor of 0 so no negative score is ever surfaced. Pure and
// deterministic: same inputs always yield the same output.
func Compute(w Weights, s Signals) float64 {
	task := clamp(s.TaskCompletionPct, 0, 100)
	peer := NormalizePeerScore(s.PeerReviewAvg)
	commit := NormalizeCommitScore(s.CommitCount, s.GroupAvgCommits)

	score := (w.TaskCompletion*task+w.PeerReview*peer+w.Commit*commit)/100 -
		(w.LatePenalty/100)*float64(s.LateTaskCount)

	if score < 0 {
		return 0
	}
	return score
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
