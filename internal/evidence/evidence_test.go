package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInputs() Inputs {
	return Inputs{
		CalculatedScore:        13.25,
		GroupAverageScore:      80,
		PercentageBelowAverage: 83.4375,
		TotalTasks:             10,
		CompletedTasks:         2,
		LateTasks:              2,
		TotalCommits:           1,
		GroupAvgCommits:        20,
		AverageRating:          1.5,
		LowRatingCount:         2,
		Feedback:               []string{"rarely showed up", "missed the sprint demo"},
	}
}

func TestSnapshot_ExactPayload(t *testing.T) {
	ev := Snapshot(sampleInputs())

	assert.Equal(t, Evidence{
		CalculatedScore:        13.25,
		GroupAverageScore:      80,
		PercentageBelowAverage: 83.4375,
		TaskEvidence: TaskEvidence{
			TotalTasks:           10,
			CompletedTasks:       2,
			CompletionPercentage: 20,
			LateTasks:            2,
		},
		CommitEvidence: CommitEvidence{
			TotalCommits:             1,
			PercentageOfGroupAverage: 5,
		},
		PeerReviewEvidence: PeerReviewEvidence{
			AverageRating:  1.5,
			LowRatingCount: 2,
			Feedback:       []string{"rarely showed up", "missed the sprint demo"},
		},
	}, ev)
}

func TestSnapshot_Deterministic(t *testing.T) {
	in := sampleInputs()
	assert.Equal(t, Snapshot(in), Snapshot(in))
}

func TestSnapshot_DegenerateDenominators(t *testing.T) {
	ev := Snapshot(Inputs{TotalTasks: 0, GroupAvgCommits: 0, TotalCommits: 3})

	assert.Equal(t, 0.0, ev.TaskEvidence.CompletionPercentage)
	assert.Equal(t, 0.0, ev.CommitEvidence.PercentageOfGroupAverage)
}

func TestSnapshot_CopiesFeedback(t *testing.T) {
	in := sampleInputs()
	ev := Snapshot(in)
	in.Feedback[0] = "mutated"

	assert.Equal(t, "rarely showed up", ev.PeerReviewEvidence.Feedback[0])
}

func TestCodec_RoundTrip(t *testing.T) {
	ev := Snapshot(sampleInputs())

	raw, err := Encode(ev)
	require.NoError(t, err)
	assert.Contains(t, raw, `"schema_version":1`)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, ev, decoded)
}

func TestCodec_RejectsUnknownVersion(t *testing.T) {
	_, err := Decode(`{"schema_version":99,"evidence":{}}`)
	assert.ErrorContains(t, err, "unsupported evidence schema version 99")
}

func TestCodec_ToleratesAddedFields(t *testing.T) {
	raw := `{"schema_version":1,"evidence":{"calculated_score":5,"some_future_field":true}}`

	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, 5.0, decoded.CalculatedScore)
}

func TestCodec_RejectsMalformedBlob(t *testing.T) {
	_, err := Decode(`{not json`)
	assert.Error(t, err)
}
