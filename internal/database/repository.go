package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository handles database operations for the engine.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// --- project settings ---

// GetProjectSettings returns the stored settings for a project, or nil when
// none were ever configured.
func (r *Repository) GetProjectSettings(projectID string) (*ProjectSettings, error) {
	var ps ProjectSettings
	err := r.db.QueryRow(`
		SELECT project_id, task_weight, peer_review_weight, commit_weight,
		       late_penalty_weight, detection_threshold, exclude_leads, updated_at
		FROM project_settings WHERE project_id = ?
	`, projectID).Scan(
		&ps.ProjectID, &ps.TaskWeight, &ps.PeerReviewWeight, &ps.CommitWeight,
		&ps.LatePenaltyWeight, &ps.DetectionThreshold, &ps.ExcludeLeads, &ps.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project settings: %w", err)
	}
	return &ps, nil
}

// UpsertProjectSettings stores or replaces a project's settings.
func (r *Repository) UpsertProjectSettings(ps *ProjectSettings) error {
	ps.UpdatedAt = time.Now()
	_, err := r.db.Exec(`
		INSERT INTO project_settings (
			project_id, task_weight, peer_review_weight, commit_weight,
			late_penalty_weight, detection_threshold, exclude_leads, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			task_weight = excluded.task_weight,
			peer_review_weight = excluded.peer_review_weight,
			commit_weight = excluded.commit_weight,
			late_penalty_weight = excluded.late_penalty_weight,
			detection_threshold = excluded.detection_threshold,
			exclude_leads = excluded.exclude_leads,
			updated_at = excluded.updated_at
	`, ps.ProjectID, ps.TaskWeight, ps.PeerReviewWeight, ps.CommitWeight,
		ps.LatePenaltyWeight, ps.DetectionThreshold, ps.ExcludeLeads, ps.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert project settings: %w", err)
	}
	return nil
}

// ListProjectIDs returns every project that has group members, for scheduled
// detection sweeps.
func (r *Repository) ListProjectIDs() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT project_id FROM group_members ORDER BY project_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- group membership ---

// UpsertGroupMember stores or replaces a membership record.
func (r *Repository) UpsertGroupMember(m *GroupMember) error {
	_, err := r.db.Exec(`
		INSERT INTO group_members (group_id, project_id, student_id, is_lead, is_excluded)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id, student_id) DO UPDATE SET
			group_id = excluded.group_id,
			is_lead = excluded.is_lead,
			is_excluded = excluded.is_excluded
	`, m.GroupID, m.ProjectID, m.StudentID, m.IsLead, m.IsExcluded)
	if err != nil {
		return fmt.Errorf("failed to upsert group member: %w", err)
	}
	return nil
}

// GetGroupMember returns a student's membership in a project, or nil.
func (r *Repository) GetGroupMember(studentID, projectID string) (*GroupMember, error) {
	var m GroupMember
	err := r.db.QueryRow(`
		SELECT group_id, project_id, student_id, is_lead, is_excluded
		FROM group_members WHERE project_id = ? AND student_id = ?
	`, projectID, studentID).Scan(&m.GroupID, &m.ProjectID, &m.StudentID, &m.IsLead, &m.IsExcluded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query group member: %w", err)
	}
	return &m, nil
}

// ListGroupMembers returns all members of one group in a project.
func (r *Repository) ListGroupMembers(groupID, projectID string) ([]GroupMember, error) {
	rows, err := r.db.Query(`
		SELECT group_id, project_id, student_id, is_lead, is_excluded
		FROM group_members WHERE group_id = ? AND project_id = ?
		ORDER BY student_id
	`, groupID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer rows.Close()
	return scanMembers(rows)
}

// ListProjectMembers returns all members across every group in a project.
func (r *Repository) ListProjectMembers(projectID string) ([]GroupMember, error) {
	rows, err := r.db.Query(`
		SELECT group_id, project_id, student_id, is_lead, is_excluded
		FROM group_members WHERE project_id = ?
		ORDER BY group_id, student_id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}
	defer rows.Close()
	return scanMembers(rows)
}

func scanMembers(rows *sql.Rows) ([]GroupMember, error) {
	var members []GroupMember
	for rows.Next() {
		var m GroupMember
		if err := rows.Scan(&m.GroupID, &m.ProjectID, &m.StudentID, &m.IsLead, &m.IsExcluded); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// --- signal ingestion ---

// UpsertTaskStats stores the latest aggregated task figures for a student.
func (r *Repository) UpsertTaskStats(ts *TaskStats) error {
	ts.UpdatedAt = time.Now()
	_, err := r.db.Exec(`
		INSERT INTO task_stats (student_id, project_id, total_tasks, completed_tasks, late_tasks, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, student_id) DO UPDATE SET
			total_tasks = excluded.total_tasks,
			completed_tasks = excluded.completed_tasks,
			late_tasks = excluded.late_tasks,
			updated_at = excluded.updated_at
	`, ts.StudentID, ts.ProjectID, ts.TotalTasks, ts.CompletedTasks, ts.LateTasks, ts.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert task stats: %w", err)
	}
	return nil
}

// GetTaskStats returns a student's task stats, or a zero record when the
// aggregator has not pushed any yet.
func (r *Repository) GetTaskStats(studentID, projectID string) (*TaskStats, error) {
	var ts TaskStats
	err := r.db.QueryRow(`
		SELECT student_id, project_id, total_tasks, completed_tasks, late_tasks, updated_at
		FROM task_stats WHERE project_id = ? AND student_id = ?
	`, projectID, studentID).Scan(
		&ts.StudentID, &ts.ProjectID, &ts.TotalTasks, &ts.CompletedTasks, &ts.LateTasks, &ts.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &TaskStats{StudentID: studentID, ProjectID: projectID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task stats: %w", err)
	}
	return &ts, nil
}

// UpsertCommitStats stores the latest commit count for a student.
func (r *Repository) UpsertCommitStats(cs *CommitStats) error {
	cs.UpdatedAt = time.Now()
	_, err := r.db.Exec(`
		INSERT INTO commit_stats (student_id, project_id, commit_count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id, student_id) DO UPDATE SET
			commit_count = excluded.commit_count,
			updated_at = excluded.updated_at
	`, cs.StudentID, cs.ProjectID, cs.CommitCount, cs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert commit stats: %w", err)
	}
	return nil
}

// GetCommitStats returns a student's commit stats, zero when none pushed.
func (r *Repository) GetCommitStats(studentID, projectID string) (*CommitStats, error) {
	var cs CommitStats
	err := r.db.QueryRow(`
		SELECT student_id, project_id, commit_count, updated_at
		FROM commit_stats WHERE project_id = ? AND student_id = ?
	`, projectID, studentID).Scan(&cs.StudentID, &cs.ProjectID, &cs.CommitCount, &cs.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &CommitStats{StudentID: studentID, ProjectID: projectID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query commit stats: %w", err)
	}
	return &cs, nil
}

// GroupAverageCommits returns the mean commit count over a group's
// non-excluded members, 0 when the group has no commit data.
func (r *Repository) GroupAverageCommits(groupID, projectID string) (float64, error) {
	var avg sql.NullFloat64
	err := r.db.QueryRow(`
		SELECT AVG(COALESCE(cs.commit_count, 0))
		FROM group_members gm
		LEFT JOIN commit_stats cs
			ON cs.project_id = gm.project_id AND cs.student_id = gm.student_id
		WHERE gm.group_id = ? AND gm.project_id = ? AND gm.is_excluded = FALSE
	`, groupID, projectID).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to compute group average commits: %w", err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

// --- peer reviews ---

// UpsertPeerReview stores a review; re-submission for the same
// (reviewer, reviewee, week) replaces the earlier record.
func (r *Repository) UpsertPeerReview(pr *PeerReview) error {
	_, err := r.db.Exec(`
		INSERT INTO peer_reviews (
			id, reviewer_id, reviewee_id, project_id, review_week,
			completion_score, cooperation_score, score, comment,
			is_completed, is_valid, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(reviewer_id, reviewee_id, project_id, review_week) DO UPDATE SET
			completion_score = excluded.completion_score,
			cooperation_score = excluded.cooperation_score,
			score = excluded.score,
			comment = excluded.comment,
			is_completed = excluded.is_completed,
			is_valid = excluded.is_valid
	`, pr.ID, pr.ReviewerID, pr.RevieweeID, pr.ProjectID, pr.ReviewWeek,
		pr.CompletionScore, pr.CooperationScore, pr.Score, pr.Comment,
		pr.IsCompleted, pr.IsValid, pr.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert peer review: %w", err)
	}
	return nil
}

// ListReviewsReceived returns the completed, valid reviews a student has
// received across all weeks of a project.
func (r *Repository) ListReviewsReceived(revieweeID, projectID string) ([]PeerReview, error) {
	rows, err := r.db.Query(`
		SELECT id, reviewer_id, reviewee_id, project_id, review_week,
		       completion_score, cooperation_score, score, comment,
		       is_completed, is_valid, created_at
		FROM peer_reviews
		WHERE reviewee_id = ? AND project_id = ? AND is_completed = TRUE AND is_valid = TRUE
		ORDER BY review_week, created_at
	`, revieweeID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list received reviews: %w", err)
	}
	defer rows.Close()
	return scanReviews(rows)
}

// ListReviewsSubmitted returns the completed, valid reviews a reviewer has
// submitted for one week of a project.
func (r *Repository) ListReviewsSubmitted(reviewerID, projectID string, week int) ([]PeerReview, error) {
	rows, err := r.db.Query(`
		SELECT id, reviewer_id, reviewee_id, project_id, review_week,
		       completion_score, cooperation_score, score, comment,
		       is_completed, is_valid, created_at
		FROM peer_reviews
		WHERE reviewer_id = ? AND project_id = ? AND review_week = ?
		  AND is_completed = TRUE AND is_valid = TRUE
		ORDER BY reviewee_id
	`, reviewerID, projectID, week)
	if err != nil {
		return nil, fmt.Errorf("failed to list submitted reviews: %w", err)
	}
	defer rows.Close()
	return scanReviews(rows)
}

func scanReviews(rows *sql.Rows) ([]PeerReview, error) {
	var reviews []PeerReview
	for rows.Next() {
		var pr PeerReview
		if err := rows.Scan(
			&pr.ID, &pr.ReviewerID, &pr.RevieweeID, &pr.ProjectID, &pr.ReviewWeek,
			&pr.CompletionScore, &pr.CooperationScore, &pr.Score, &pr.Comment,
			&pr.IsCompleted, &pr.IsValid, &pr.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan peer review: %w", err)
		}
		reviews = append(reviews, pr)
	}
	return reviews, rows.Err()
}

// --- contribution scores ---

// GetScore returns a student's score record, or nil when none exists.
func (r *Repository) GetScore(studentID, projectID string) (*ContributionScore, error) {
	var s ContributionScore
	err := r.db.QueryRow(`
		SELECT id, student_id, project_id, calculated_score, adjusted_score,
		       adjustment_reason, is_final, task_completion_score, peer_review_score,
		       commit_count, late_task_count, created_at, updated_at
		FROM contribution_scores WHERE student_id = ? AND project_id = ?
	`, studentID, projectID).Scan(
		&s.ID, &s.StudentID, &s.ProjectID, &s.CalculatedScore, &s.AdjustedScore,
		&s.AdjustmentReason, &s.IsFinal, &s.TaskCompletionScore, &s.PeerReviewScore,
		&s.CommitCount, &s.LateTaskCount, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query score: %w", err)
	}
	return &s, nil
}

// GetScoreByID returns a score record by id, or nil.
func (r *Repository) GetScoreByID(scoreID string) (*ContributionScore, error) {
	var s ContributionScore
	err := r.db.QueryRow(`
		SELECT id, student_id, project_id, calculated_score, adjusted_score,
		       adjustment_reason, is_final, task_completion_score, peer_review_score,
		       commit_count, late_task_count, created_at, updated_at
		FROM contribution_scores WHERE id = ?
	`, scoreID).Scan(
		&s.ID, &s.StudentID, &s.ProjectID, &s.CalculatedScore, &s.AdjustedScore,
		&s.AdjustmentReason, &s.IsFinal, &s.TaskCompletionScore, &s.PeerReviewScore,
		&s.CommitCount, &s.LateTaskCount, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query score by id: %w", err)
	}
	return &s, nil
}

// ListScores returns every score record in a project.
func (r *Repository) ListScores(projectID string) ([]ContributionScore, error) {
	rows, err := r.db.Query(`
		SELECT id, student_id, project_id, calculated_score, adjusted_score,
		       adjustment_reason, is_final, task_completion_score, peer_review_score,
		       commit_count, late_task_count, created_at, updated_at
		FROM contribution_scores WHERE project_id = ?
		ORDER BY student_id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	defer rows.Close()

	var scores []ContributionScore
	for rows.Next() {
		var s ContributionScore
		if err := rows.Scan(
			&s.ID, &s.StudentID, &s.ProjectID, &s.CalculatedScore, &s.AdjustedScore,
			&s.AdjustmentReason, &s.IsFinal, &s.TaskCompletionScore, &s.PeerReviewScore,
			&s.CommitCount, &s.LateTaskCount, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// UpsertCalculatedScore writes a freshly computed score, creating the record
// on first computation. The guarded update leaves adjusted_score and
// adjustment_reason untouched and refuses to touch finalized rows; the
// returned bool reports whether the write was applied.
func (r *Repository) UpsertCalculatedScore(s *ContributionScore) (bool, error) {
	now := time.Now()
	res, err := r.db.Exec(`
		INSERT INTO contribution_scores (
			id, student_id, project_id, calculated_score, is_final,
			task_completion_score, peer_review_score, commit_count, late_task_count,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, FALSE, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(student_id, project_id) DO UPDATE SET
			calculated_score = excluded.calculated_score,
			task_completion_score = excluded.task_completion_score,
			peer_review_score = excluded.peer_review_score,
			commit_count = excluded.commit_count,
			late_task_count = excluded.late_task_count,
			updated_at = excluded.updated_at
		WHERE contribution_scores.is_final = FALSE
	`, s.ID, s.StudentID, s.ProjectID, s.CalculatedScore,
		s.TaskCompletionScore, s.PeerReviewScore, s.CommitCount, s.LateTaskCount,
		now, now)
	if err != nil {
		return false, fmt.Errorf("failed to upsert calculated score: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// AdjustScore records a manual override plus its audit entry in one
// transaction. The guarded update refuses finalized rows; the returned bool
// reports whether the adjustment was applied.
func (r *Repository) AdjustScore(scoreID string, previous *float64, newValue float64, reason, adjustedBy string) (bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin adjustment transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE contribution_scores
		SET adjusted_score = ?, adjustment_reason = ?, updated_at = ?
		WHERE id = ? AND is_final = FALSE
	`, newValue, reason, time.Now(), scoreID)
	if err != nil {
		return false, fmt.Errorf("failed to adjust score: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	_, err = tx.Exec(`
		INSERT INTO score_adjustments (id, score_id, previous_value, new_value, reason, adjusted_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), scoreID, previous, newValue, reason, adjustedBy, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to record adjustment audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit adjustment: %w", err)
	}
	return true, nil
}

// ListAdjustments returns the audit trail for one score, newest first.
func (r *Repository) ListAdjustments(scoreID string) ([]ScoreAdjustment, error) {
	rows, err := r.db.Query(`
		SELECT id, score_id, previous_value, new_value, reason, adjusted_by, created_at
		FROM score_adjustments WHERE score_id = ?
		ORDER BY created_at DESC
	`, scoreID)
	if err != nil {
		return nil, fmt.Errorf("failed to list adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []ScoreAdjustment
	for rows.Next() {
		var a ScoreAdjustment
		if err := rows.Scan(&a.ID, &a.ScoreID, &a.PreviousValue, &a.NewValue, &a.Reason, &a.AdjustedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		adjustments = append(adjustments, a)
	}
	return adjustments, rows.Err()
}

// FinalizeScores marks every score in a project final. One-way and
// idempotent: already-final rows are simply not matched. Returns the number
// of rows newly finalized.
func (r *Repository) FinalizeScores(projectID string) (int64, error) {
	res, err := r.db.Exec(`
		UPDATE contribution_scores SET is_final = TRUE, updated_at = ?
		WHERE project_id = ? AND is_final = FALSE
	`, time.Now(), projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to finalize scores: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected, nil
}

// --- free-rider cases ---

// CreateCaseIfAbsent atomically inserts a new open case unless one already
// exists for the (student, project). The partial unique index arbitrates
// races; the loser re-reads and returns the surviving case. The bool reports
// whether c itself was inserted.
func (r *Repository) CreateCaseIfAbsent(c *FreeRiderCase) (*FreeRiderCase, bool, error) {
	res, err := r.db.Exec(`
		INSERT OR IGNORE INTO free_rider_cases (
			id, student_id, group_id, project_id, status, evidence,
			detected_at, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.StudentID, c.GroupID, c.ProjectID, c.Status, c.Evidence,
		c.DetectedAt, c.Notes, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create case: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected > 0 {
		return c, true, nil
	}

	existing, err := r.GetOpenCase(c.StudentID, c.ProjectID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		// Lost the insert without an open case surviving: the race partner
		// resolved it in between. Treat as a transient miss.
		return nil, false, fmt.Errorf("case insert ignored but no open case found for student %s", c.StudentID)
	}
	return existing, false, nil
}

// GetOpenCase returns the single non-resolved case for a student in a
// project, or nil.
func (r *Repository) GetOpenCase(studentID, projectID string) (*FreeRiderCase, error) {
	return r.queryCase(`
		SELECT id, student_id, group_id, project_id, status, evidence,
		       detected_at, resolved_at, resolution, notes, created_at, updated_at
		FROM free_rider_cases
		WHERE student_id = ? AND project_id = ? AND status != 'resolved'
	`, studentID, projectID)
}

// GetCase returns a case by id, or nil.
func (r *Repository) GetCase(caseID string) (*FreeRiderCase, error) {
	return r.queryCase(`
		SELECT id, student_id, group_id, project_id, status, evidence,
		       detected_at, resolved_at, resolution, notes, created_at, updated_at
		FROM free_rider_cases WHERE id = ?
	`, caseID)
}

// LatestResolvedCase returns a student's most recently resolved case in a
// project, or nil. Drives the re-detection cooldown.
func (r *Repository) LatestResolvedCase(studentID, projectID string) (*FreeRiderCase, error) {
	return r.queryCase(`
		SELECT id, student_id, group_id, project_id, status, evidence,
		       detected_at, resolved_at, resolution, notes, created_at, updated_at
		FROM free_rider_cases
		WHERE student_id = ? AND project_id = ? AND status = 'resolved'
		ORDER BY resolved_at DESC LIMIT 1
	`, studentID, projectID)
}

func (r *Repository) queryCase(query string, args ...interface{}) (*FreeRiderCase, error) {
	var c FreeRiderCase
	err := r.db.QueryRow(query, args...).Scan(
		&c.ID, &c.StudentID, &c.GroupID, &c.ProjectID, &c.Status, &c.Evidence,
		&c.DetectedAt, &c.ResolvedAt, &c.Resolution, &c.Notes, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query case: %w", err)
	}
	return &c, nil
}

// ListCases returns a project's cases, optionally including resolved ones.
func (r *Repository) ListCases(projectID string, includeResolved bool) ([]FreeRiderCase, error) {
	query := `
		SELECT id, student_id, group_id, project_id, status, evidence,
		       detected_at, resolved_at, resolution, notes, created_at, updated_at
		FROM free_rider_cases WHERE project_id = ?`
	if !includeResolved {
		query += ` AND status != 'resolved'`
	}
	query += ` ORDER BY detected_at DESC`

	rows, err := r.db.Query(query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var cases []FreeRiderCase
	for rows.Next() {
		var c FreeRiderCase
		if err := rows.Scan(
			&c.ID, &c.StudentID, &c.GroupID, &c.ProjectID, &c.Status, &c.Evidence,
			&c.DetectedAt, &c.ResolvedAt, &c.Resolution, &c.Notes, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// ContactCase moves a pending case to contacted. Returns false when the case
// was not pending.
func (r *Repository) ContactCase(caseID string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE free_rider_cases SET status = 'contacted', updated_at = ?
		WHERE id = ? AND status = 'pending'
	`, time.Now(), caseID)
	if err != nil {
		return false, fmt.Errorf("failed to contact case: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// ResolveCase closes a non-resolved case exactly once. The guard in the
// WHERE clause makes resolution a one-way transition; false means the case
// was already resolved (or missing, which the caller distinguishes).
func (r *Repository) ResolveCase(caseID string, resolution Resolution, notes string, resolvedAt time.Time) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE free_rider_cases
		SET status = 'resolved', resolution = ?, notes = ?, resolved_at = ?, updated_at = ?
		WHERE id = ? AND status != 'resolved'
	`, string(resolution), notes, resolvedAt, resolvedAt, caseID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve case: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}
