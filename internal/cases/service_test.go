package cases

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupward/contrib-engine/internal/database"
	"github.com/groupward/contrib-engine/internal/errors"
)

func newTestService(t *testing.T) (*Service, *database.Repository) {
	t.Helper()
	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := database.NewRepository(db)
	return NewService(repo, nil), repo
}

func TestOpenIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Now()

	c1, created, err := svc.Open("bob", "g1", "proj-1", `{"schema_version":1}`, now)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, database.CasePending, c1.Status)

	c2, created, err := svc.Open("bob", "g1", "proj-1", `{"schema_version":1}`, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, c1.ID, c2.ID)
	assert.Equal(t, c1.Evidence, c2.Evidence, "existing case keeps its original evidence")
}

func TestResolveValidation(t *testing.T) {
	svc, _ := newTestService(t)
	c, _, err := svc.Open("bob", "g1", "proj-1", `{}`, time.Now())
	require.NoError(t, err)

	_, err = svc.Resolve(c.ID, "dismissal", "talked it through with the group")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err), "unknown resolution type must be rejected")

	_, err = svc.Resolve(c.ID, "warning", "   ")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err), "blank notes must be rejected")

	// A terse but non-empty note is enough.
	resolved, err := svc.Resolve(c.ID, "warning", "ok")
	require.NoError(t, err)
	assert.Equal(t, database.CaseResolved, resolved.Status)
}

func TestResolveLeavesCaseUntouchedOnFailure(t *testing.T) {
	svc, _ := newTestService(t)
	c, _, err := svc.Open("bob", "g1", "proj-1", `{}`, time.Now())
	require.NoError(t, err)

	_, err = svc.Resolve(c.ID, "warning", "")
	require.Error(t, err)
	got, err := svc.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, database.CasePending, got.Status)
}

func TestResolveOnceOnly(t *testing.T) {
	svc, _ := newTestService(t)
	c, _, err := svc.Open("bob", "g1", "proj-1", `{}`, time.Now())
	require.NoError(t, err)

	resolved, err := svc.Resolve(c.ID, "warning", "group mediation held, warning issued")
	require.NoError(t, err)
	assert.Equal(t, database.CaseResolved, resolved.Status)
	require.NotNil(t, resolved.Resolution)
	assert.Equal(t, "warning", *resolved.Resolution)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = svc.Resolve(c.ID, "penalty", "changed my mind about this one")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err), "second resolution must conflict")

	_, err = svc.Resolve("no-such-case", "warning", "some sufficiently long note")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestContactTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	c, _, err := svc.Open("bob", "g1", "proj-1", `{}`, time.Now())
	require.NoError(t, err)

	got, err := svc.Contact(c.ID)
	require.NoError(t, err)
	assert.Equal(t, database.CaseContacted, got.Status)

	// Second contact is a harmless no-op.
	got, err = svc.Contact(c.ID)
	require.NoError(t, err)
	assert.Equal(t, database.CaseContacted, got.Status)

	_, err = svc.Contact("no-such-case")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestCanDetectHonorsCooldown(t *testing.T) {
	svc, repo := newTestService(t)

	// No history: always eligible.
	ok, err := svc.CanDetect("bob", "proj-1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	resolvedAt := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	c := database.NewFreeRiderCase("bob", "g1", "proj-1", `{}`, resolvedAt.Add(-48*time.Hour))
	_, _, err = repo.CreateCaseIfAbsent(c)
	require.NoError(t, err)
	applied, err := repo.ResolveCase(c.ID, database.ResolutionWarning, "warned after mediation", resolvedAt)
	require.NoError(t, err)
	require.True(t, applied)

	// Three days later, same month and ISO week: still cooling down.
	ok, err = svc.CanDetect("bob", "proj-1", resolvedAt.Add(72*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	// Next month, ten days and two ISO weeks later.
	ok, err = svc.CanDetect("bob", "proj-1", time.Date(2026, time.April, 8, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, ok)

	// An open case does not impose a cooldown; idempotent create handles it.
	ok, err = svc.CanDetect("alice", "proj-1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestManualFlagRequiresMembership(t *testing.T) {
	svc, repo := newTestService(t)

	_, _, err := svc.ManualFlag("ghost", "proj-1", `{}`, "never shows up")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, repo.UpsertGroupMember(&database.GroupMember{
		GroupID: "g1", ProjectID: "proj-1", StudentID: "bob",
	}))

	c, created, err := svc.ManualFlag("bob", "proj-1", `{}`, "never shows up")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "g1", c.GroupID)
	assert.Equal(t, "never shows up", c.Notes)

	// Second flag reuses the open case.
	c2, created, err := svc.ManualFlag("bob", "proj-1", `{}`, "still missing")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, c.ID, c2.ID)
}
