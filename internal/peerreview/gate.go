// Package peerreview aggregates weekly peer ratings and enforces the review
// gate: a student sees nothing about their teammates' ratings until their own
// reviews for the week are in.
package peerreview

import (
	"log/slog"

	"github.com/groupward/contrib-engine/internal/database"
	"github.com/groupward/contrib-engine/internal/errors"
	"github.com/groupward/contrib-engine/internal/scoring"
)

const (
	// Ratings are 1..5; a missing optional comment is fine, a rating
	// outside the scale is not.
	MinRating = 1.0
	MaxRating = scoring.MaxRating

	// Ratings at or below this count as negative signals in the summary.
	lowRatingCeiling = 2.0
)

// Gate answers review-completeness questions and aggregates received reviews.
type Gate struct {
	repo   *database.Repository
	logger *slog.Logger
}

// NewGate creates a review gate over the repository.
func NewGate(repo *database.Repository, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{repo: repo, logger: logger}
}

// Status is one reviewer's standing for one review week.
type Status struct {
	ReviewerID  string   `json:"reviewer_id"`
	ProjectID   string   `json:"project_id"`
	Week        int      `json:"week"`
	Required    int      `json:"required"`
	Submitted   int      `json:"submitted"`
	Outstanding []string `json:"outstanding"`
	Complete    bool     `json:"complete"`
}

// Summary aggregates the reviews one student has received in a project.
type Summary struct {
	StudentID       string   `json:"student_id"`
	ProjectID       string   `json:"project_id"`
	AverageRating   float64  `json:"average_rating"`
	ReviewCount     int      `json:"review_count"`
	LowRatingCount  int      `json:"low_rating_count"`
	Feedback        []string `json:"feedback"`
	NormalizedScore float64  `json:"normalized_score"`
}

// Submit validates and stores one review. Re-submitting for the same
// (reviewer, reviewee, week) replaces the earlier rating.
func (g *Gate) Submit(reviewerID, revieweeID, projectID string, week int, completion, cooperation float64, comment string) (*database.PeerReview, error) {
	if reviewerID == revieweeID {
		return nil, errors.NewValidationError("students cannot review themselves")
	}
	if week < 1 {
		return nil, errors.NewValidationError("review week must be positive", "week", week)
	}
	if completion < MinRating || completion > MaxRating {
		return nil, errors.NewValidationError("completion rating out of range", "rating", completion)
	}
	if cooperation < MinRating || cooperation > MaxRating {
		return nil, errors.NewValidationError("cooperation rating out of range", "rating", cooperation)
	}

	reviewer, err := g.repo.GetGroupMember(reviewerID, projectID)
	if err != nil {
		return nil, errors.NewInternalError("failed to look up reviewer", err)
	}
	if reviewer == nil {
		return nil, errors.NewNotFoundError("reviewer")
	}
	reviewee, err := g.repo.GetGroupMember(revieweeID, projectID)
	if err != nil {
		return nil, errors.NewInternalError("failed to look up reviewee", err)
	}
	if reviewee == nil {
		return nil, errors.NewNotFoundError("reviewee")
	}
	if reviewer.GroupID != reviewee.GroupID {
		return nil, errors.NewValidationError("reviewer and reviewee are not in the same group")
	}

	pr := database.NewPeerReview(reviewerID, revieweeID, projectID, week, completion, cooperation, comment)
	if err := g.repo.UpsertPeerReview(pr); err != nil {
		return nil, errors.NewInternalError("failed to store review", err)
	}

	g.logger.Debug("peer review submitted",
		"reviewer_id", reviewerID,
		"reviewee_id", revieweeID,
		"project_id", projectID,
		"week", week,
	)
	return pr, nil
}

// StatusFor reports which teammates a reviewer still owes reviews for in a
// given week. Complete is true only when every other group member has been
// reviewed.
func (g *Gate) StatusFor(reviewerID, projectID string, week int) (*Status, error) {
	reviewer, err := g.repo.GetGroupMember(reviewerID, projectID)
	if err != nil {
		return nil, errors.NewInternalError("failed to look up reviewer", err)
	}
	if reviewer == nil {
		return nil, errors.NewNotFoundError("reviewer")
	}

	members, err := g.repo.ListGroupMembers(reviewer.GroupID, projectID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list group members", err)
	}
	submitted, err := g.repo.ListReviewsSubmitted(reviewerID, projectID, week)
	if err != nil {
		return nil, errors.NewInternalError("failed to list submitted reviews", err)
	}

	reviewed := make(map[string]bool, len(submitted))
	for _, pr := range submitted {
		reviewed[pr.RevieweeID] = true
	}

	st := &Status{
		ReviewerID:  reviewerID,
		ProjectID:   projectID,
		Week:        week,
		Outstanding: []string{},
	}
	for _, m := range members {
		if m.StudentID == reviewerID {
			continue
		}
		st.Required++
		if reviewed[m.StudentID] {
			st.Submitted++
		} else {
			st.Outstanding = append(st.Outstanding, m.StudentID)
		}
	}
	st.Complete = st.Submitted == st.Required
	return st, nil
}

// SummaryFor aggregates the completed, valid reviews a student has received.
// A student with no reviews gets a zero summary, not an error.
func (g *Gate) SummaryFor(studentID, projectID string) (*Summary, error) {
	reviews, err := g.repo.ListReviewsReceived(studentID, projectID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list received reviews", err)
	}
	return Summarize(studentID, projectID, reviews), nil
}

// Summarize folds a set of received reviews into a Summary. Pure, so
// detection can reuse it on already-loaded rows.
func Summarize(studentID, projectID string, reviews []database.PeerReview) *Summary {
	s := &Summary{
		StudentID: studentID,
		ProjectID: projectID,
		Feedback:  []string{},
	}
	if len(reviews) == 0 {
		return s
	}

	var total float64
	for _, pr := range reviews {
		total += pr.Score
		s.ReviewCount++
		if pr.Score <= lowRatingCeiling {
			s.LowRatingCount++
		}
		if pr.Comment != "" {
			s.Feedback = append(s.Feedback, pr.Comment)
		}
	}
	s.AverageRating = total / float64(s.ReviewCount)
	s.NormalizedScore = scoring.NormalizePeerScore(s.AverageRating)
	return s
}
