// Package evidence assembles the immutable snapshot stored inside a
// free-rider case. Snapshots are built once at detection or case-creation
// time and never recomputed, so a resolved case always displays exactly the
// evidence that justified the decision.
package evidence

// TaskEvidence is the task-completion detail at snapshot time.
type TaskEvidence struct {
	TotalTasks           int     `json:"total_tasks"`
	CompletedTasks       int     `json:"completed_tasks"`
	CompletionPercentage float64 `json:"completion_percentage"`
	LateTasks            int     `json:"late_tasks"`
}

// CommitEvidence is the commit-activity detail at snapshot time.
type CommitEvidence struct {
	TotalCommits             int     `json:"total_commits"`
	PercentageOfGroupAverage float64 `json:"percentage_of_group_average"`
}

// PeerReviewEvidence is the peer-feedback detail at snapshot time.
type PeerReviewEvidence struct {
	AverageRating  float64  `json:"average_rating"`
	LowRatingCount int      `json:"low_rating_count"`
	Feedback       []string `json:"feedback"`
}

// Evidence is the full structured record justifying a free-rider flag.
type Evidence struct {
	CalculatedScore        float64            `json:"calculated_score"`
	GroupAverageScore      float64            `json:"group_average_score"`
	PercentageBelowAverage float64            `json:"percentage_below_average"`
	TaskEvidence           TaskEvidence       `json:"task_evidence"`
	CommitEvidence         CommitEvidence     `json:"commit_evidence"`
	PeerReviewEvidence     PeerReviewEvidence `json:"peer_review_evidence"`
}

// Inputs carries the raw detail Snapshot assembles from. All values are
// already computed by the caller; Snapshot makes no external calls.
type Inputs struct {
	CalculatedScore        float64
	GroupAverageScore      float64
	PercentageBelowAverage float64

	TotalTasks     int
	CompletedTasks int
	LateTasks      int

	TotalCommits    int
	GroupAvgCommits float64

	AverageRating  float64
	LowRatingCount int
	Feedback       []string
}

// Snapshot builds the evidence record. Deterministic given identical inputs.
func Snapshot(in Inputs) Evidence {
	completionPct := 0.0
	if in.TotalTasks > 0 {
		completionPct = float64(in.CompletedTasks) / float64(in.TotalTasks) * 100
	}

	commitPct := 0.0
	if in.GroupAvgCommits > 0 {
		commitPct = float64(in.TotalCommits) / in.GroupAvgCommits * 100
	}

	feedback := make([]string, len(in.Feedback))
	copy(feedback, in.Feedback)

	return Evidence{
		CalculatedScore:        in.CalculatedScore,
		GroupAverageScore:      in.GroupAverageScore,
		PercentageBelowAverage: in.PercentageBelowAverage,
		TaskEvidence: TaskEvidence{
			TotalTasks:           in.TotalTasks,
			CompletedTasks:       in.CompletedTasks,
			CompletionPercentage: completionPct,
			LateTasks:            in.LateTasks,
		},
		CommitEvidence: CommitEvidence{
			TotalCommits:             in.TotalCommits,
			PercentageOfGroupAverage: commitPct,
		},
		PeerReviewEvidence: PeerReviewEvidence{
			AverageRating:  in.AverageRating,
			LowRatingCount: in.LowRatingCount,
			Feedback:       feedback,
		},
	}
}
