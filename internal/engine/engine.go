// Package engine orchestrates the contribution-scoring pipeline: signal
// ingestion, score computation, group statistics, risk evaluation, and
// free-rider detection with case management.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/groupward/contrib-engine/internal/cache"
	"github.com/groupward/contrib-engine/internal/cases"
	"github.com/groupward/contrib-engine/internal/database"
	"github.com/groupward/contrib-engine/internal/errors"
	"github.com/groupward/contrib-engine/internal/evidence"
	"github.com/groupward/contrib-engine/internal/monitoring"
	"github.com/groupward/contrib-engine/internal/peerreview"
	"github.com/groupward/contrib-engine/internal/risk"
	"github.com/groupward/contrib-engine/internal/scoring"
	"github.com/groupward/contrib-engine/internal/stats"
)

const (
	// DefaultDetectionThreshold is the percentage-below-group-average at
	// which detection opens a case, absent project settings.
	DefaultDetectionThreshold = 25.0

	// MinReasonLength is the shortest accepted adjustment reason.
	MinReasonLength = 10

	// computeConcurrency bounds the per-project score computation fan-out.
	computeConcurrency = 8
)

// Engine is the facade over the whole pipeline.
type Engine struct {
	repo      *database.Repository
	cases     *cases.Service
	gate      *peerreview.Gate
	riskCache *cache.Cache[[]StudentRisk]
	metrics   *monitoring.Metrics
	logger    *slog.Logger
}

// New creates an engine. The risk cache TTL is a backstop; writes invalidate
// eagerly.
func New(repo *database.Repository, caseSvc *cases.Service, gate *peerreview.Gate, metrics *monitoring.Metrics, riskTTL time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	return &Engine{
		repo:      repo,
		cases:     caseSvc,
		gate:      gate,
		riskCache: cache.New[[]StudentRisk](riskTTL),
		metrics:   metrics,
		logger:    logger,
	}
}

// Close releases background resources.
func (e *Engine) Close() {
	e.riskCache.Close()
}

// --- settings ---

// Settings returns a project's effective configuration, falling back to
// defaults when none were stored.
func (e *Engine) Settings(projectID string) (*database.ProjectSettings, error) {
	ps, err := e.repo.GetProjectSettings(projectID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load project settings", err)
	}
	if ps == nil {
		w := scoring.DefaultWeights()
		ps = &database.ProjectSettings{
			ProjectID:          projectID,
			TaskWeight:         w.TaskCompletion,
			PeerReviewWeight:   w.PeerReview,
			CommitWeight:       w.Commit,
			LatePenaltyWeight:  w.LatePenalty,
			DetectionThreshold: DefaultDetectionThreshold,
		}
	}
	return ps, nil
}

// UpdateSettings validates and stores project configuration, invalidating
// derived views.
func (e *Engine) UpdateSettings(ps *database.ProjectSettings) error {
	w := scoring.Weights{
		TaskCompletion: ps.TaskWeight,
		PeerReview:     ps.PeerReviewWeight,
		Commit:         ps.CommitWeight,
		LatePenalty:    ps.LatePenaltyWeight,
	}
	if !w.Valid() {
		return errors.NewValidationError("weights must be non-negative")
	}
	if ps.DetectionThreshold < 0 || ps.DetectionThreshold > 100 {
		return errors.NewValidationError("detection threshold must be within 0-100", "threshold", ps.DetectionThreshold)
	}
	if err := e.repo.UpsertProjectSettings(ps); err != nil {
		return errors.NewInternalError("failed to store project settings", err)
	}
	e.riskCache.Invalidate(ps.ProjectID)
	return nil
}

func (e *Engine) weightsFor(projectID string) (scoring.Weights, float64, bool, error) {
	ps, err := e.Settings(projectID)
	if err != nil {
		return scoring.Weights{}, 0, false, err
	}
	w := scoring.Weights{
		TaskCompletion: ps.TaskWeight,
		PeerReview:     ps.PeerReviewWeight,
		Commit:         ps.CommitWeight,
		LatePenalty:    ps.LatePenaltyWeight,
	}
	return w, ps.DetectionThreshold, ps.ExcludeLeads, nil
}

// --- signal ingestion ---

// RegisterMember stores or updates a group membership and invalidates
// derived views for the project.
func (e *Engine) RegisterMember(m *database.GroupMember) error {
	if m.StudentID == "" || m.GroupID == "" || m.ProjectID == "" {
		return errors.NewValidationError("student, group, and project ids are required")
	}
	if err := e.repo.UpsertGroupMember(m); err != nil {
		return errors.NewInternalError("failed to store group member", err)
	}
	e.riskCache.Invalidate(m.ProjectID)
	return nil
}

// IngestTaskStats stores the latest task aggregate pushed by the task system.
func (e *Engine) IngestTaskStats(ts *database.TaskStats) error {
	if ts.TotalTasks < 0 || ts.CompletedTasks < 0 || ts.LateTasks < 0 {
		return errors.NewValidationError("task counts must be non-negative")
	}
	if ts.CompletedTasks > ts.TotalTasks {
		return errors.NewValidationError("completed tasks cannot exceed total tasks")
	}
	if err := e.repo.UpsertTaskStats(ts); err != nil {
		return errors.NewInternalError("failed to store task stats", err)
	}
	e.riskCache.Invalidate(ts.ProjectID)
	return nil
}

// IngestCommitStats stores the latest commit aggregate pushed by the VCS
// integration.
func (e *Engine) IngestCommitStats(cs *database.CommitStats) error {
	if cs.CommitCount < 0 {
		return errors.NewValidationError("commit count must be non-negative")
	}
	if err := e.repo.UpsertCommitStats(cs); err != nil {
		return errors.NewInternalError("failed to store commit stats", err)
	}
	e.riskCache.Invalidate(cs.ProjectID)
	return nil
}

// SubmitReview validates and stores a peer review through the gate.
func (e *Engine) SubmitReview(reviewerID, revieweeID, projectID string, week int, completion, cooperation float64, comment string) (*database.PeerReview, error) {
	pr, err := e.gate.Submit(reviewerID, revieweeID, projectID, week, completion, cooperation, comment)
	if err != nil {
		return nil, err
	}
	e.riskCache.Invalidate(projectID)
	return pr, nil
}

// ReviewGate reports a reviewer's outstanding reviews for a week.
func (e *Engine) ReviewGate(reviewerID, projectID string, week int) (*peerreview.Status, error) {
	return e.gate.StatusFor(reviewerID, projectID, week)
}

// --- score computation ---

// ComputeScore computes and persists one student's contribution score from
// the currently stored signals. Finalized scores are left untouched and
// reported as a conflict.
func (e *Engine) ComputeScore(studentID, projectID string) (*database.ContributionScore, error) {
	member, err := e.repo.GetGroupMember(studentID, projectID)
	if err != nil {
		return nil, errors.NewInternalError("failed to look up group member", err)
	}
	if member == nil {
		return nil, errors.NewNotFoundError("group member")
	}

	weights, _, _, err := e.weightsFor(projectID)
	if err != nil {
		return nil, err
	}

	sig, summary, err := e.loadSignals(studentID, projectID, member.GroupID)
	if err != nil {
		return nil, err
	}

	calculated := scoring.Compute(weights, *sig)
	record := database.NewContributionScore(
		studentID, projectID, calculated,
		sig.TaskCompletionPct, summary.NormalizedScore,
		sig.CommitCount, sig.LateTaskCount,
	)
	applied, err := e.repo.UpsertCalculatedScore(record)
	if err != nil {
		return nil, errors.NewInternalError("failed to store computed score", err)
	}
	if !applied {
		return nil, errors.NewAlreadyFinalizedError(studentID, projectID)
	}

	e.metrics.AddScoresComputed(1)
	e.riskCache.Invalidate(projectID)

	stored, err := e.repo.GetScore(studentID, projectID)
	if err != nil {
		return nil, errors.NewInternalError("failed to reload computed score", err)
	}
	return stored, nil
}

func (e *Engine) loadSignals(studentID, projectID, groupID string) (*scoring.Signals, *peerreview.Summary, error) {
	ts, err := e.repo.GetTaskStats(studentID, projectID)
	if err != nil {
		return nil, nil, errors.NewInternalError("failed to load task stats", err)
	}
	cs, err := e.repo.GetCommitStats(studentID, projectID)
	if err != nil {
		return nil, nil, errors.NewInternalError("failed to load commit stats", err)
	}
	groupAvg, err := e.repo.GroupAverageCommits(groupID, projectID)
	if err != nil {
		return nil, nil, errors.NewInternalError("failed to load group commit average", err)
	}
	summary, err := e.gate.SummaryFor(studentID, projectID)
	if err != nil {
		return nil, nil, err
	}

	return &scoring.Signals{
		TaskCompletionPct: ts.CompletionPct(),
		PeerReviewAvg:     summary.AverageRating,
		CommitCount:       cs.CommitCount,
		GroupAvgCommits:   groupAvg,
		LateTaskCount:     ts.LateTasks,
	}, summary, nil
}

// ScoreFailure records one member whose computation did not apply.
type ScoreFailure struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// ProjectScoreReport summarizes a project-wide computation run. Computation
// is per-student independent, so one failure never voids the rest.
type ProjectScoreReport struct {
	ProjectID string         `json:"project_id"`
	Computed  int            `json:"computed"`
	Failed    []ScoreFailure `json:"failed,omitempty"`
}

// ComputeProjectScores recomputes every member of a project in parallel.
func (e *Engine) ComputeProjectScores(ctx context.Context, projectID string) (*ProjectScoreReport, error) {
	members, err := e.repo.ListProjectMembers(projectID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list project members", err)
	}

	report := &ProjectScoreReport{ProjectID: projectID}
	results := make([]*ScoreFailure, len(members))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(computeConcurrency)
	for i, m := range members {
		i, m := i, m
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if _, err := e.ComputeScore(m.StudentID, projectID); err != nil {
				results[i] = &ScoreFailure{StudentID: m.StudentID, Reason: err.Error()}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.NewInternalError("project score computation aborted", err)
	}

	for _, f := range results {
		if f != nil {
			report.Failed = append(report.Failed, *f)
		} else {
			report.Computed++
		}
	}

	e.logger.Info("project scores computed",
		"project_id", projectID,
		"computed", report.Computed,
		"failed", len(report.Failed),
	)
	return report, nil
}

// AdjustScore applies an instructor override to a student's score, leaving
// the calculated value untouched and recording an audit entry.
func (e *Engine) AdjustScore(studentID, projectID string, newValue float64, reason, adjustedBy string) (*database.ContributionScore, error) {
	if newValue < 0 || newValue > 100 {
		return nil, errors.NewValidationError("adjusted score must be within 0-100", "value", newValue)
	}
	if len(strings.TrimSpace(reason)) < MinReasonLength {
		return nil, errors.NewInvalidReasonError()
	}

	score, err := e.repo.GetScore(studentID, projectID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load score", err)
	}
	if score == nil {
		return nil, errors.NewNotFoundError("contribution score")
	}

	applied, err := e.repo.AdjustScore(score.ID, score.AdjustedScore, newValue, strings.TrimSpace(reason), adjustedBy)
	if err != nil {
		return nil, errors.NewInternalError("failed to adjust score", err)
	}
	if !applied {
		return nil, errors.NewAlreadyFinalizedError(studentID, projectID)
	}

	e.riskCache.Invalidate(projectID)
	e.logger.Info("score adjusted",
		"student_id", studentID,
		"project_id", projectID,
		"new_value", newValue,
		"adjusted_by", adjustedBy,
	)
	return e.repo.GetScore(studentID, projectID)
}

// GetScore returns a student's stored score record.
func (e *Engine) GetScore(studentID, projectID string) (*database.ContributionScore, error) {
	score, err := e.repo.GetScore(studentID, projectID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load score", err)
	}
	if score == nil {
		return nil, errors.NewNotFoundError("contribution score")
	}
	return score, nil
}

// ListScores returns every stored score in a project.
func (e *Engine) ListScores(projectID string) ([]database.ContributionScore, error) {
	scores, err := e.repo.ListScores(projectID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list scores", err)
	}
	return scores, nil
}

// ListAdjustments returns the audit trail for a student's score.
func (e *Engine) ListAdjustments(studentID, projectID string) ([]database.ScoreAdjustment, error) {
	score, err := e.GetScore(studentID, projectID)
	if err != nil {
		return nil, err
	}
	audit, err := e.repo.ListAdjustments(score.ID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list adjustments", err)
	}
	return audit, nil
}

// FinalizeScores locks every score in a project against recomputation and
// adjustment. One-way and idempotent; returns the count newly finalized.
func (e *Engine) FinalizeScores(projectID string) (int64, error) {
	n, err := e.repo.FinalizeScores(projectID)
	if err != nil {
		return 0, errors.NewInternalError("failed to finalize scores", err)
	}
	e.riskCache.Invalidate(projectID)
	e.logger.Info("scores finalized", "project_id", projectID, "newly_finalized", n)
	return n, nil
}

// --- risk evaluation and detection ---

// StudentRisk is one member's evaluation within their group.
type StudentRisk struct {
	StudentID       string          `json:"student_id"`
	GroupID         string          `json:"group_id"`
	EffectiveScore  float64         `json:"effective_score"`
	CalculatedScore float64         `json:"calculated_score"`
	GroupAverage    float64         `json:"group_average"`
	Assessment      risk.Assessment `json:"assessment"`
	// Actionable mirrors the group's statistic validity: false in groups
	// with fewer than two scored members, where no case may be produced.
	Actionable bool `json:"actionable"`
}

// GetRiskScores evaluates every scored member of a project, cached per
// project until an underlying write invalidates it.
func (e *Engine) GetRiskScores(projectID string) ([]StudentRisk, error) {
	if cached, ok := e.riskCache.Get(projectID); ok {
		e.metrics.IncrementCacheHits()
		return cached, nil
	}
	e.metrics.IncrementCacheMisses()

	risks, err := e.evaluateProject(projectID)
	if err != nil {
		return nil, err
	}
	e.riskCache.Set(projectID, risks)
	return risks, nil
}

// evaluateProject derives group statistics and risk assessments from stored
// scores. Members without a computed score are left out rather than counted
// as zero contributors.
func (e *Engine) evaluateProject(projectID string) ([]StudentRisk, error) {
	members, err := e.repo.ListProjectMembers(projectID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list project members", err)
	}
	_, _, excludeLeads, err := e.weightsFor(projectID)
	if err != nil {
		return nil, err
	}

	scores, err := e.repo.ListScores(projectID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list scores", err)
	}
	scoreByStudent := make(map[string]*database.ContributionScore, len(scores))
	for i := range scores {
		scoreByStudent[scores[i].StudentID] = &scores[i]
	}

	// Group members into their comparison pools, dropping excluded
	// members (and leads when configured) from the statistics entirely.
	groups := make(map[string][]database.GroupMember)
	for _, m := range members {
		if m.IsExcluded || (excludeLeads && m.IsLead) {
			continue
		}
		if _, ok := scoreByStudent[m.StudentID]; !ok {
			continue
		}
		groups[m.GroupID] = append(groups[m.GroupID], m)
	}

	var out []StudentRisk
	for groupID, groupMembers := range groups {
		memberScores := make([]stats.MemberScore, 0, len(groupMembers))
		for _, m := range groupMembers {
			memberScores = append(memberScores, stats.MemberScore{
				StudentID: m.StudentID,
				Score:     scoreByStudent[m.StudentID].EffectiveScore(),
			})
		}
		gs := stats.Compute(memberScores)

		groupAvgCommits, err := e.repo.GroupAverageCommits(groupID, projectID)
		if err != nil {
			return nil, errors.NewInternalError("failed to load group commit average", err)
		}

		for _, m := range groupMembers {
			score := scoreByStudent[m.StudentID]
			summary, err := e.gate.SummaryFor(m.StudentID, projectID)
			if err != nil {
				return nil, err
			}
			assessment := risk.Evaluate(risk.Input{
				PctBelowAverage: gs.BelowAverage[m.StudentID],
				CommitCount:     score.CommitCount,
				GroupAvgCommits: groupAvgCommits,
				PeerReviewAvg:   summary.AverageRating,
				ReviewCount:     summary.ReviewCount,
			})
			out = append(out, StudentRisk{
				StudentID:       m.StudentID,
				GroupID:         groupID,
				EffectiveScore:  score.EffectiveScore(),
				CalculatedScore: score.CalculatedScore,
				GroupAverage:    gs.GroupAverage,
				Assessment:      assessment,
				Actionable:      gs.Actionable,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Assessment.RiskScore != out[j].Assessment.RiskScore {
			return out[i].Assessment.RiskScore > out[j].Assessment.RiskScore
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out, nil
}

// Skip records one member detection evaluated but did not flag.
type Skip struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// DetectionReport summarizes one detection sweep over a project. Cases holds
// only the cases this sweep created; pre-existing open cases show up under
// Skipped instead.
type DetectionReport struct {
	ProjectID    string                   `json:"project_id"`
	RunAt        time.Time                `json:"run_at"`
	Evaluated    int                      `json:"evaluated"`
	Flagged      int                      `json:"flagged"`
	CasesCreated int                      `json:"cases_created"`
	Cases        []database.FreeRiderCase `json:"cases"`
	Skipped      []Skip                   `json:"skipped,omitempty"`
}

// DetectFreeRiders recomputes scores, evaluates every group, and opens a
// case for each member whose contribution falls below the detection
// threshold. Existing open cases and the post-resolution cooldown both
// suppress new cases.
func (e *Engine) DetectFreeRiders(ctx context.Context, projectID string) (*DetectionReport, error) {
	now := time.Now()
	e.metrics.IncrementDetectionRuns()

	if _, err := e.ComputeProjectScores(ctx, projectID); err != nil {
		return nil, err
	}

	_, threshold, _, err := e.weightsFor(projectID)
	if err != nil {
		return nil, err
	}

	risks, err := e.evaluateProject(projectID)
	if err != nil {
		return nil, err
	}

	report := &DetectionReport{ProjectID: projectID, RunAt: now, Evaluated: len(risks)}
	for _, r := range risks {
		if r.Assessment.PctBelowAverage < threshold {
			continue
		}
		report.Flagged++

		if !r.Actionable {
			report.Skipped = append(report.Skipped, Skip{r.StudentID, "group too small for comparison"})
			continue
		}
		ok, err := e.cases.CanDetect(r.StudentID, projectID, now)
		if err != nil {
			e.logger.Error("cooldown check failed", "student_id", r.StudentID, "error", err)
			report.Skipped = append(report.Skipped, Skip{r.StudentID, "not processed: " + err.Error()})
			continue
		}
		if !ok {
			report.Skipped = append(report.Skipped, Skip{r.StudentID, "within post-resolution cooldown"})
			continue
		}

		// A failure for one student must not discard the cases already
		// created this sweep; record it and keep going.
		evidenceJSON, err := e.snapshotEvidence(r, projectID)
		if err != nil {
			e.logger.Error("evidence snapshot failed", "student_id", r.StudentID, "error", err)
			report.Skipped = append(report.Skipped, Skip{r.StudentID, "not processed: " + err.Error()})
			continue
		}
		c, created, err := e.cases.Open(r.StudentID, r.GroupID, projectID, evidenceJSON, now)
		if err != nil {
			e.logger.Error("case creation failed", "student_id", r.StudentID, "error", err)
			report.Skipped = append(report.Skipped, Skip{r.StudentID, "not processed: " + err.Error()})
			continue
		}
		if created {
			report.CasesCreated++
			report.Cases = append(report.Cases, *c)
		} else {
			report.Skipped = append(report.Skipped, Skip{r.StudentID, "open case already exists"})
		}
	}

	e.metrics.AddCasesCreated(int64(report.CasesCreated))
	e.riskCache.Invalidate(projectID)
	e.logger.Info("detection sweep finished",
		"project_id", projectID,
		"evaluated", report.Evaluated,
		"flagged", report.Flagged,
		"cases_created", report.CasesCreated,
	)
	return report, nil
}

// snapshotEvidence freezes the full justification for a flag at detection
// time.
func (e *Engine) snapshotEvidence(r StudentRisk, projectID string) (string, error) {
	ts, err := e.repo.GetTaskStats(r.StudentID, projectID)
	if err != nil {
		return "", errors.NewInternalError("failed to load task stats", err)
	}
	cs, err := e.repo.GetCommitStats(r.StudentID, projectID)
	if err != nil {
		return "", errors.NewInternalError("failed to load commit stats", err)
	}
	groupAvgCommits, err := e.repo.GroupAverageCommits(r.GroupID, projectID)
	if err != nil {
		return "", errors.NewInternalError("failed to load group commit average", err)
	}
	summary, err := e.gate.SummaryFor(r.StudentID, projectID)
	if err != nil {
		return "", err
	}

	ev := evidence.Snapshot(evidence.Inputs{
		CalculatedScore:        r.CalculatedScore,
		GroupAverageScore:      r.GroupAverage,
		PercentageBelowAverage: r.Assessment.PctBelowAverage,
		TotalTasks:             ts.TotalTasks,
		CompletedTasks:         ts.CompletedTasks,
		LateTasks:              ts.LateTasks,
		TotalCommits:           cs.CommitCount,
		GroupAvgCommits:        groupAvgCommits,
		AverageRating:          summary.AverageRating,
		LowRatingCount:         summary.LowRatingCount,
		Feedback:               summary.Feedback,
	})
	encoded, err := evidence.Encode(ev)
	if err != nil {
		return "", errors.NewInternalError("failed to encode evidence", err)
	}
	return encoded, nil
}

// --- cases ---

// FlagStudent opens a case manually with evidence frozen from the current
// signals.
func (e *Engine) FlagStudent(studentID, projectID, notes string) (*database.FreeRiderCase, bool, error) {
	member, err := e.repo.GetGroupMember(studentID, projectID)
	if err != nil {
		return nil, false, errors.NewInternalError("failed to look up group member", err)
	}
	if member == nil {
		return nil, false, errors.NewNotFoundError("group member")
	}

	// A manual flag may precede any computed score; evidence then records
	// zeros rather than blocking the instructor.
	r := StudentRisk{StudentID: studentID, GroupID: member.GroupID}
	if risks, err := e.evaluateProject(projectID); err == nil {
		for _, candidate := range risks {
			if candidate.StudentID == studentID {
				r = candidate
				break
			}
		}
	}

	evidenceJSON, err := e.snapshotEvidence(r, projectID)
	if err != nil {
		return nil, false, err
	}
	c, created, err := e.cases.ManualFlag(studentID, projectID, evidenceJSON, notes)
	if err != nil {
		return nil, false, err
	}
	if created {
		e.metrics.AddCasesCreated(1)
		e.riskCache.Invalidate(projectID)
	}
	return c, created, nil
}

// GetEvidence decodes the frozen evidence stored in a case.
func (e *Engine) GetEvidence(caseID string) (*evidence.Evidence, error) {
	c, err := e.cases.Get(caseID)
	if err != nil {
		return nil, err
	}
	ev, err := evidence.Decode(c.Evidence)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to decode evidence for case %s", caseID), err)
	}
	return &ev, nil
}

// GetStudentEvidence resolves a student's case in a project (open first,
// otherwise the latest resolved one) and decodes its frozen evidence.
func (e *Engine) GetStudentEvidence(studentID, projectID string) (*evidence.Evidence, error) {
	c, err := e.cases.Latest(studentID, projectID)
	if err != nil {
		return nil, err
	}
	return e.GetEvidence(c.ID)
}

// Cases returns a project's cases.
func (e *Engine) Cases(projectID string, includeResolved bool) ([]database.FreeRiderCase, error) {
	return e.cases.List(projectID, includeResolved)
}

// GetCase returns one case by id.
func (e *Engine) GetCase(caseID string) (*database.FreeRiderCase, error) {
	return e.cases.Get(caseID)
}

// ContactCase marks a case contacted.
func (e *Engine) ContactCase(caseID string) (*database.FreeRiderCase, error) {
	return e.cases.Contact(caseID)
}

// ResolveCase closes a case with a validated resolution.
func (e *Engine) ResolveCase(caseID, resolution, notes string) (*database.FreeRiderCase, error) {
	c, err := e.cases.Resolve(caseID, resolution, notes)
	if err != nil {
		return nil, err
	}
	e.riskCache.Invalidate(c.ProjectID)
	return c, nil
}

// CanDetectAgain reports whether the cooldown permits re-flagging a student
// now.
func (e *Engine) CanDetectAgain(studentID, projectID string) (bool, error) {
	return e.cases.CanDetect(studentID, projectID, time.Now())
}

// CacheStats exposes risk-cache effectiveness for the stats endpoint.
func (e *Engine) CacheStats() cache.Stats {
	return e.riskCache.GetStats()
}
