package cases

import (
	"log/slog"
	"strings"
	"time"

	"github.com/groupward/contrib-engine/internal/database"
	"github.com/groupward/contrib-engine/internal/errors"
)

// Service owns the case lifecycle: opening, contacting, and resolving
// free-rider cases, plus the re-detection cooldown.
type Service struct {
	repo   *database.Repository
	logger *slog.Logger
}

// NewService creates a case service.
func NewService(repo *database.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Open creates a pending case for a student unless an open one already
// exists, in which case the existing case is returned unchanged. The bool
// reports whether a new case was created.
func (s *Service) Open(studentID, groupID, projectID, evidenceJSON string, detectedAt time.Time) (*database.FreeRiderCase, bool, error) {
	c := database.NewFreeRiderCase(studentID, groupID, projectID, evidenceJSON, detectedAt)
	got, created, err := s.repo.CreateCaseIfAbsent(c)
	if err != nil {
		return nil, false, errors.NewInternalError("failed to open case", err)
	}
	if created {
		s.logger.Info("free-rider case opened",
			"case_id", got.ID,
			"student_id", studentID,
			"project_id", projectID,
		)
	} else {
		s.logger.Debug("open case already exists, reusing",
			"case_id", got.ID,
			"student_id", studentID,
			"project_id", projectID,
		)
	}
	return got, created, nil
}

// CanDetect reports whether detection may flag the student now, honoring the
// cooldown after their latest resolved case. A student with no resolved
// history is always eligible.
func (s *Service) CanDetect(studentID, projectID string, now time.Time) (bool, error) {
	latest, err := s.repo.LatestResolvedCase(studentID, projectID)
	if err != nil {
		return false, errors.NewInternalError("failed to look up resolved cases", err)
	}
	if latest == nil || latest.ResolvedAt == nil {
		return true, nil
	}
	return CanDetectAgain(now, *latest.ResolvedAt), nil
}

// Latest returns the student's most relevant case in the project: the open
// one when present, otherwise the most recently resolved one. Returns
// NotFound when the student has never been flagged.
func (s *Service) Latest(studentID, projectID string) (*database.FreeRiderCase, error) {
	c, err := s.repo.GetOpenCase(studentID, projectID)
	if err != nil {
		return nil, errors.NewInternalError("failed to look up open case", err)
	}
	if c == nil {
		c, err = s.repo.LatestResolvedCase(studentID, projectID)
		if err != nil {
			return nil, errors.NewInternalError("failed to look up resolved cases", err)
		}
	}
	if c == nil {
		return nil, errors.NewNotFoundError("case")
	}
	return c, nil
}

// Get returns a case by id.
func (s *Service) Get(caseID string) (*database.FreeRiderCase, error) {
	c, err := s.repo.GetCase(caseID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load case", err)
	}
	if c == nil {
		return nil, errors.NewNotFoundError("case")
	}
	return c, nil
}

// List returns a project's cases, optionally including resolved ones.
func (s *Service) List(projectID string, includeResolved bool) ([]database.FreeRiderCase, error) {
	list, err := s.repo.ListCases(projectID, includeResolved)
	if err != nil {
		return nil, errors.NewInternalError("failed to list cases", err)
	}
	return list, nil
}

// Contact marks a pending case contacted. Contacting a case that is already
// past pending is a no-op, not an error: notifying twice is harmless.
func (s *Service) Contact(caseID string) (*database.FreeRiderCase, error) {
	c, err := s.Get(caseID)
	if err != nil {
		return nil, err
	}
	applied, err := s.repo.ContactCase(caseID)
	if err != nil {
		return nil, errors.NewInternalError("failed to mark case contacted", err)
	}
	if applied {
		s.logger.Info("case marked contacted", "case_id", caseID)
		return s.Get(caseID)
	}
	return c, nil
}

// Resolve closes a case exactly once with a validated resolution type and a
// non-empty note. Resolving an already-resolved case fails with a conflict.
func (s *Service) Resolve(caseID, resolution, notes string) (*database.FreeRiderCase, error) {
	res := database.Resolution(resolution)
	if !database.ValidResolution(res) {
		return nil, errors.NewInvalidResolutionError(resolution)
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, errors.NewValidationError("resolution notes are required")
	}

	// Read first so a missing case reports not-found rather than conflict.
	if _, err := s.Get(caseID); err != nil {
		return nil, err
	}

	applied, err := s.repo.ResolveCase(caseID, res, notes, time.Now())
	if err != nil {
		return nil, errors.NewInternalError("failed to resolve case", err)
	}
	if !applied {
		return nil, errors.NewAlreadyResolvedError(caseID)
	}

	s.logger.Info("case resolved",
		"case_id", caseID,
		"resolution", resolution,
	)
	return s.Get(caseID)
}

// ManualFlag opens a case outside the detection pipeline, on an instructor's
// judgment. It shares Open's idempotency but skips the cooldown: a human
// decision overrides the backoff.
func (s *Service) ManualFlag(studentID, projectID, evidenceJSON, notes string) (*database.FreeRiderCase, bool, error) {
	member, err := s.repo.GetGroupMember(studentID, projectID)
	if err != nil {
		return nil, false, errors.NewInternalError("failed to look up group member", err)
	}
	if member == nil {
		return nil, false, errors.NewNotFoundError("group member")
	}

	c := database.NewFreeRiderCase(studentID, member.GroupID, projectID, evidenceJSON, time.Now())
	c.Notes = notes
	got, created, err := s.repo.CreateCaseIfAbsent(c)
	if err != nil {
		return nil, false, errors.NewInternalError("failed to open case", err)
	}
	if created {
		s.logger.Info("case opened manually",
			"case_id", got.ID,
			"student_id", studentID,
			"project_id", projectID,
		)
	}
	return got, created, nil
}
