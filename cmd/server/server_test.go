package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupward/contrib-engine/internal/cases"
	"github.com/groupward/contrib-engine/internal/database"
	"github.com/groupward/contrib-engine/internal/engine"
	"github.com/groupward/contrib-engine/internal/monitoring"
	"github.com/groupward/contrib-engine/internal/peerreview"
	"github.com/groupward/contrib-engine/internal/ratelimit"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := database.NewRepository(db)
	gate := peerreview.NewGate(repo, nil)
	caseSvc := cases.NewService(repo, nil)
	metrics := monitoring.NewMetrics()
	eng := engine.New(repo, caseSvc, gate, metrics, time.Minute, nil)
	t.Cleanup(eng.Close)

	return setupRouter(eng, metrics, nil, []string{"http://localhost:3000"})
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

// seedProject registers a group where bob lags far behind, over HTTP.
func seedProject(t *testing.T, router *gin.Engine, projectID string) {
	t.Helper()
	for _, m := range []struct {
		student string
		group   string
	}{{"alice", "g1"}, {"bob", "g1"}, {"carol", "g1"}} {
		w := doJSON(t, router, http.MethodPost, "/projects/"+projectID+"/members", gin.H{
			"student_id": m.student,
			"group_id":   m.group,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	signals := []struct {
		student                string
		total, done, late, com int
	}{
		{"alice", 10, 9, 0, 30},
		{"bob", 10, 2, 2, 1},
		{"carol", 10, 8, 1, 25},
	}
	for _, s := range signals {
		w := doJSON(t, router, http.MethodPost, "/projects/"+projectID+"/signals/tasks", gin.H{
			"student_id": s.student, "total_tasks": s.total,
			"completed_tasks": s.done, "late_tasks": s.late,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		w = doJSON(t, router, http.MethodPost, "/projects/"+projectID+"/signals/commits", gin.H{
			"student_id": s.student, "commit_count": s.com,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	for _, reviewer := range []string{"alice", "carol"} {
		w := doJSON(t, router, http.MethodPost, "/projects/"+projectID+"/reviews", gin.H{
			"reviewer_id": reviewer, "reviewee_id": "bob", "week": 1,
			"completion_score": 1, "cooperation_score": 2, "comment": "hard to reach",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
}

func TestSettingsRoundTrip(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/projects/p1/settings", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, 25.0, body["task_weight"], "defaults before any settings are stored")

	w = doJSON(t, router, http.MethodPut, "/projects/p1/settings", gin.H{
		"task_weight": 40, "peer_review_weight": 30,
		"commit_weight": 20, "late_penalty_weight": 10,
		"detection_threshold": 30,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/projects/p1/settings", nil)
	body = decode(t, w)
	assert.Equal(t, 40.0, body["task_weight"])
	assert.Equal(t, 30.0, body["detection_threshold"])

	w = doJSON(t, router, http.MethodPut, "/projects/p1/settings", gin.H{
		"task_weight": -5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScorePipelineOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	seedProject(t, router, "p1")

	w := doJSON(t, router, http.MethodPost, "/projects/p1/scores/compute", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode(t, w)
	assert.Equal(t, 3.0, report["computed"])

	w = doJSON(t, router, http.MethodGet, "/projects/p1/scores/bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	score := decode(t, w)
	assert.Equal(t, "bob", score["student_id"])
	assert.Equal(t, false, score["is_final"])

	// Adjust, then verify calculated is preserved.
	calculated := score["calculated_score"].(float64)
	w = doJSON(t, router, http.MethodPut, "/projects/p1/scores/bob/adjust", gin.H{
		"value": 55.0, "reason": "did off-platform integration work", "adjusted_by": "instructor-1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	adjusted := decode(t, w)
	assert.Equal(t, 55.0, adjusted["adjusted_score"])
	assert.Equal(t, calculated, adjusted["calculated_score"])

	w = doJSON(t, router, http.MethodGet, "/projects/p1/scores/bob/adjustments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	audit := decode(t, w)
	assert.Len(t, audit["adjustments"], 1)

	// Finalize locks the project.
	w = doJSON(t, router, http.MethodPost, "/projects/p1/scores/finalize", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3.0, decode(t, w)["finalized"])

	w = doJSON(t, router, http.MethodPut, "/projects/p1/scores/bob/adjust", gin.H{
		"value": 70.0, "reason": "attempt after finalization", "adjusted_by": "instructor-1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodPost, "/projects/p1/scores/bob/compute", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestScoreNotFound(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/projects/p1/scores/nobody", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDetectionAndCaseLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	seedProject(t, router, "p1")

	w := doJSON(t, router, http.MethodPost, "/projects/p1/detect", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode(t, w)
	assert.Equal(t, 1.0, report["cases_created"])
	created := report["cases"].([]interface{})
	require.Len(t, created, 1)
	assert.Equal(t, "bob", created[0].(map[string]interface{})["student_id"])

	w = doJSON(t, router, http.MethodGet, "/projects/p1/cases", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["cases"].([]interface{})
	require.Len(t, list, 1)
	caseID := list[0].(map[string]interface{})["id"].(string)
	assert.Equal(t, "bob", list[0].(map[string]interface{})["student_id"])

	// Evidence is decodable and matches the seeded signals.
	w = doJSON(t, router, http.MethodGet, "/cases/"+caseID+"/evidence", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ev := decode(t, w)
	task := ev["task_evidence"].(map[string]interface{})
	assert.Equal(t, 10.0, task["total_tasks"])
	assert.Equal(t, 2.0, task["completed_tasks"])

	// The same evidence resolves by (project, student), and a student who was
	// never flagged is a 404.
	w = doJSON(t, router, http.MethodGet, "/projects/p1/students/bob/evidence", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ev, decode(t, w))
	w = doJSON(t, router, http.MethodGet, "/projects/p1/students/alice/evidence", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// contact -> resolve
	w = doJSON(t, router, http.MethodPost, "/cases/"+caseID+"/contact", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "contacted", decode(t, w)["status"])

	w = doJSON(t, router, http.MethodPost, "/cases/"+caseID+"/resolve", gin.H{
		"resolution": "warning", "notes": "met with the group and agreed on a plan",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "resolved", decode(t, w)["status"])

	// Double resolution conflicts.
	w = doJSON(t, router, http.MethodPost, "/cases/"+caseID+"/resolve", gin.H{
		"resolution": "penalty", "notes": "trying to change the outcome",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Unknown resolution type is a validation error.
	w = doJSON(t, router, http.MethodPost, "/cases/"+caseID+"/resolve", gin.H{
		"resolution": "dismissal", "notes": "not a valid resolution type",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Cooldown immediately blocks re-detection.
	w = doJSON(t, router, http.MethodGet, "/projects/p1/students/bob/can-detect", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["can_detect"])

	// Resolved cases appear only with the flag.
	w = doJSON(t, router, http.MethodGet, "/projects/p1/cases", nil)
	assert.Len(t, decode(t, w)["cases"], 0)
	w = doJSON(t, router, http.MethodGet, "/projects/p1/cases?include_resolved=true", nil)
	assert.Len(t, decode(t, w)["cases"], 1)
}

func TestManualCaseCreationIdempotent(t *testing.T) {
	router := newTestRouter(t)
	seedProject(t, router, "p1")

	w := doJSON(t, router, http.MethodPost, "/projects/p1/cases", gin.H{
		"student_id": "bob", "notes": "observed absent during sprint review",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	first := decode(t, w)

	w = doJSON(t, router, http.MethodPost, "/projects/p1/cases", gin.H{
		"student_id": "bob", "notes": "flagged again by a second instructor",
	})
	assert.Equal(t, http.StatusOK, w.Code, "second flag returns the existing case")
	assert.Equal(t, first["id"], decode(t, w)["id"])

	w = doJSON(t, router, http.MethodPost, "/projects/p1/cases", gin.H{
		"student_id": "ghost", "notes": "not a member",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRiskScoresEndpoint(t *testing.T) {
	router := newTestRouter(t)
	seedProject(t, router, "p1")

	doJSON(t, router, http.MethodPost, "/projects/p1/scores/compute", nil)
	w := doJSON(t, router, http.MethodGet, "/projects/p1/risk-scores", nil)
	require.Equal(t, http.StatusOK, w.Code)

	risks := decode(t, w)["risk_scores"].([]interface{})
	require.Len(t, risks, 3)
	top := risks[0].(map[string]interface{})
	assert.Equal(t, "bob", top["student_id"])
	assessment := top["assessment"].(map[string]interface{})
	assert.Equal(t, "high", assessment["risk_tier"])
}

func TestReviewGateEndpoint(t *testing.T) {
	router := newTestRouter(t)
	seedProject(t, router, "p1")

	w := doJSON(t, router, http.MethodGet, "/projects/p1/reviews/gate/alice?week=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode(t, w)
	assert.Equal(t, false, st["complete"])
	assert.ElementsMatch(t, []interface{}{"carol"}, st["outstanding"])

	w = doJSON(t, router, http.MethodPost, "/projects/p1/reviews", gin.H{
		"reviewer_id": "alice", "reviewee_id": "carol", "week": 1,
		"completion_score": 4, "cooperation_score": 5,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, "/projects/p1/reviews/gate/alice?week=1", nil)
	assert.Equal(t, true, decode(t, w)["complete"])

	// Self-review rejected at the API boundary.
	w = doJSON(t, router, http.MethodPost, "/projects/p1/reviews", gin.H{
		"reviewer_id": "alice", "reviewee_id": "alice", "week": 1,
		"completion_score": 5, "cooperation_score": 5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimitMiddlewareWired(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := database.NewRepository(db)
	metrics := monitoring.NewMetrics()
	eng := engine.New(repo, cases.NewService(repo, nil), peerreview.NewGate(repo, nil), metrics, time.Minute, nil)
	t.Cleanup(eng.Close)

	limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: 60, Burst: 2})
	t.Cleanup(limiter.Close)
	router := setupRouter(eng, metrics, limiter, []string{"http://localhost:3000"})

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		w := doJSON(t, router, http.MethodGet, "/health", nil)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 429, 429}, codes)
}

func TestPerProjectIsolation(t *testing.T) {
	router := newTestRouter(t)
	seedProject(t, router, "p1")
	seedProject(t, router, "p2")

	w := doJSON(t, router, http.MethodPost, "/projects/p1/detect", nil)
	require.Equal(t, http.StatusOK, w.Code)

	for projectID, want := range map[string]int{"p1": 1, "p2": 0} {
		w := doJSON(t, router, http.MethodGet, fmt.Sprintf("/projects/%s/cases", projectID), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode(t, w)["cases"], want, "project %s", projectID)
	}
}
