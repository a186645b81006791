package database

import (
	"time"

	"github.com/google/uuid"
)

// CaseStatus is the lifecycle state of a free-rider case.
type CaseStatus string

const (
	CasePending   CaseStatus = "pending"
	CaseContacted CaseStatus = "contacted"
	CaseResolved  CaseStatus = "resolved"
)

// Resolution is the outcome recorded when a case is resolved.
type Resolution string

const (
	ResolutionWarning      Resolution = "warning"
	ResolutionReassignment Resolution = "reassignment"
	ResolutionPenalty      Resolution = "penalty"
	ResolutionOther        Resolution = "other"
)

// ValidResolution reports whether r is a member of the resolution enum.
func ValidResolution(r Resolution) bool {
	switch r {
	case ResolutionWarning, ResolutionReassignment, ResolutionPenalty, ResolutionOther:
		return true
	}
	return false
}

// ContributionScore is one student's weighted score in one project.
// CalculatedScore is derived and never touched by manual adjustment;
// AdjustedScore overrides it for display/grading when present.
type ContributionScore struct {
	ID                  string     `json:"id" db:"id"`
	StudentID           string     `json:"student_id" db:"student_id"`
	ProjectID           string     `json:"project_id" db:"project_id"`
	CalculatedScore     float64    `json:"calculated_score" db:"calculated_score"`
	AdjustedScore       *float64   `json:"adjusted_score,omitempty" db:"adjusted_score"`
	AdjustmentReason    *string    `json:"adjustment_reason,omitempty" db:"adjustment_reason"`
	IsFinal             bool       `json:"is_final" db:"is_final"`
	TaskCompletionScore float64    `json:"task_completion_score" db:"task_completion_score"`
	PeerReviewScore     float64    `json:"peer_review_score" db:"peer_review_score"`
	CommitCount         int        `json:"commit_count" db:"commit_count"`
	LateTaskCount       int        `json:"late_task_count" db:"late_task_count"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// EffectiveScore prefers the instructor override when one is set.
func (s *ContributionScore) EffectiveScore() float64 {
	if s.AdjustedScore != nil {
		return *s.AdjustedScore
	}
	return s.CalculatedScore
}

// NewContributionScore creates a score record with a generated id, carrying
// the computed score and the inputs it was derived from.
func NewContributionScore(studentID, projectID string, calculated, taskPct, peerScore float64, commits, late int) *ContributionScore {
	now := time.Now()
	return &ContributionScore{
		ID:                  uuid.New().String(),
		StudentID:           studentID,
		ProjectID:           projectID,
		CalculatedScore:     calculated,
		TaskCompletionScore: taskPct,
		PeerReviewScore:     peerScore,
		CommitCount:         commits,
		LateTaskCount:       late,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// ScoreAdjustment is the audit record of one manual score override.
type ScoreAdjustment struct {
	ID            string    `json:"id" db:"id"`
	ScoreID       string    `json:"score_id" db:"score_id"`
	PreviousValue *float64  `json:"previous_value,omitempty" db:"previous_value"`
	NewValue      float64   `json:"new_value" db:"new_value"`
	Reason        string    `json:"reason" db:"reason"`
	AdjustedBy    string    `json:"adjusted_by" db:"adjusted_by"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// FreeRiderCase tracks a single flag from detection through resolution.
// Evidence is a schema-versioned JSON snapshot frozen at detection time.
type FreeRiderCase struct {
	ID         string     `json:"id" db:"id"`
	StudentID  string     `json:"student_id" db:"student_id"`
	GroupID    string     `json:"group_id" db:"group_id"`
	ProjectID  string     `json:"project_id" db:"project_id"`
	Status     CaseStatus `json:"status" db:"status"`
	Evidence   string     `json:"evidence" db:"evidence"`
	DetectedAt time.Time  `json:"detected_at" db:"detected_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	Resolution *string    `json:"resolution,omitempty" db:"resolution"`
	Notes      string     `json:"notes" db:"notes"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// NewFreeRiderCase creates a pending case with a generated id.
func NewFreeRiderCase(studentID, groupID, projectID, evidenceJSON string, detectedAt time.Time) *FreeRiderCase {
	return &FreeRiderCase{
		ID:         uuid.New().String(),
		StudentID:  studentID,
		GroupID:    groupID,
		ProjectID:  projectID,
		Status:     CasePending,
		Evidence:   evidenceJSON,
		DetectedAt: detectedAt,
		CreatedAt:  detectedAt,
		UpdatedAt:  detectedAt,
	}
}

// PeerReview is one reviewer's rating of one reviewee for one review week.
// Only completed and valid reviews contribute to peer-review aggregation.
type PeerReview struct {
	ID               string    `json:"id" db:"id"`
	ReviewerID       string    `json:"reviewer_id" db:"reviewer_id"`
	RevieweeID       string    `json:"reviewee_id" db:"reviewee_id"`
	ProjectID        string    `json:"project_id" db:"project_id"`
	ReviewWeek       int       `json:"review_week" db:"review_week"`
	CompletionScore  float64   `json:"completion_score" db:"completion_score"`
	CooperationScore float64   `json:"cooperation_score" db:"cooperation_score"`
	Score            float64   `json:"score" db:"score"`
	Comment          string    `json:"comment" db:"comment"`
	IsCompleted      bool      `json:"is_completed" db:"is_completed"`
	IsValid          bool      `json:"is_valid" db:"is_valid"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// NewPeerReview creates a completed, valid review with a generated id. The
// overall score is the mean of the completion and cooperation ratings.
func NewPeerReview(reviewerID, revieweeID, projectID string, week int, completion, cooperation float64, comment string) *PeerReview {
	return &PeerReview{
		ID:               uuid.New().String(),
		ReviewerID:       reviewerID,
		RevieweeID:       revieweeID,
		ProjectID:        projectID,
		ReviewWeek:       week,
		CompletionScore:  completion,
		CooperationScore: cooperation,
		Score:            (completion + cooperation) / 2,
		Comment:          comment,
		IsCompleted:      true,
		IsValid:          true,
		CreatedAt:        time.Now(),
	}
}

// GroupMember is a student's membership in a project group.
type GroupMember struct {
	GroupID    string `json:"group_id" db:"group_id"`
	ProjectID  string `json:"project_id" db:"project_id"`
	StudentID  string `json:"student_id" db:"student_id"`
	IsLead     bool   `json:"is_lead" db:"is_lead"`
	IsExcluded bool   `json:"is_excluded" db:"is_excluded"`
}

// TaskStats are pre-aggregated task-completion figures pushed by the
// external signal aggregator.
type TaskStats struct {
	StudentID      string    `json:"student_id" db:"student_id"`
	ProjectID      string    `json:"project_id" db:"project_id"`
	TotalTasks     int       `json:"total_tasks" db:"total_tasks"`
	CompletedTasks int       `json:"completed_tasks" db:"completed_tasks"`
	LateTasks      int       `json:"late_tasks" db:"late_tasks"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// CompletionPct is completed/total on a 0-100 scale, 0 when no tasks exist.
func (t *TaskStats) CompletionPct() float64 {
	if t.TotalTasks <= 0 {
		return 0
	}
	return float64(t.CompletedTasks) / float64(t.TotalTasks) * 100
}

// CommitStats are pre-aggregated commit counts pushed by the source-control
// integration.
type CommitStats struct {
	StudentID   string    `json:"student_id" db:"student_id"`
	ProjectID   string    `json:"project_id" db:"project_id"`
	CommitCount int       `json:"commit_count" db:"commit_count"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ProjectSettings holds the per-project scoring weights and detection
// configuration. Weight mapping: W1 task completion, W2 peer review,
// W3 commit contribution, W4 late-task penalty.
type ProjectSettings struct {
	ProjectID          string    `json:"project_id" db:"project_id"`
	TaskWeight         float64   `json:"task_weight" db:"task_weight"`
	PeerReviewWeight   float64   `json:"peer_review_weight" db:"peer_review_weight"`
	CommitWeight       float64   `json:"commit_weight" db:"commit_weight"`
	LatePenaltyWeight  float64   `json:"late_penalty_weight" db:"late_penalty_weight"`
	DetectionThreshold float64   `json:"detection_threshold" db:"detection_threshold"`
	ExcludeLeads       bool      `json:"exclude_leads" db:"exclude_leads"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}
