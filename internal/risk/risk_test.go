package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_ClearFreeRider(t *testing.T) {
	in := Input{
		PctBelowAverage: 83.4,
		CommitCount:     1,
		GroupAvgCommits: 20,
		PeerReviewAvg:   1.5,
		ReviewCount:     3,
	}

	a := Evaluate(in)

	// 0.5*0.834 + 0.3*0.95 + 0.2*0.5 = 0.802
	assert.InDelta(t, 0.802, a.RiskScore, 1e-9)
	assert.Equal(t, TierHigh, a.RiskTier)
	assert.Equal(t, TierHigh, a.BelowAverageTier)
}

func TestEvaluate_HealthyContributor(t *testing.T) {
	in := Input{
		PctBelowAverage: 0,
		CommitCount:     25,
		GroupAvgCommits: 20,
		PeerReviewAvg:   4.5,
		ReviewCount:     3,
	}

	a := Evaluate(in)

	assert.Equal(t, 0.0, a.RiskScore)
	assert.Equal(t, TierLow, a.RiskTier)
	assert.Equal(t, TierLow, a.BelowAverageTier)
}

func TestEvaluate_TwoMeasuresStayDistinct(t *testing.T) {
	// Deep below average but with solid commits and ratings: the display
	// tier is High while the risk tier is only Medium.
	in := Input{
		PctBelowAverage: 85,
		CommitCount:     30,
		GroupAvgCommits: 20,
		PeerReviewAvg:   4.0,
		ReviewCount:     2,
	}

	a := Evaluate(in)

	assert.Equal(t, TierHigh, a.BelowAverageTier)
	assert.InDelta(t, 0.425, a.RiskScore, 1e-9)
	assert.Equal(t, TierMedium, a.RiskTier)
}

func TestClassifyRisk(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		expected Tier
	}{
		{"high at boundary", 0.7, TierHigh},
		{"high above boundary", 0.95, TierHigh},
		{"medium at boundary", 0.4, TierMedium},
		{"medium below high", 0.69, TierMedium},
		{"low", 0.39, TierLow},
		{"zero", 0, TierLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyRisk(tt.score))
		})
	}
}

func TestClassifyBelowAverage(t *testing.T) {
	tests := []struct {
		name     string
		pct      float64
		expected Tier
	}{
		{"high at boundary", 70, TierHigh},
		{"medium at boundary", 40, TierMedium},
		{"low", 39.9, TierLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyBelowAverage(tt.pct))
		})
	}
}

func TestCommitShortfall(t *testing.T) {
	assert.Equal(t, 0.0, CommitShortfall(10, 0)) // no group signal
	assert.Equal(t, 0.0, CommitShortfall(25, 20))
	assert.InDelta(t, 0.95, CommitShortfall(1, 20), 1e-9)
	assert.Equal(t, 1.0, CommitShortfall(0, 20))
}

func TestPeerShortfall(t *testing.T) {
	assert.Equal(t, 0.0, PeerShortfall(0, 0)) // no reviews, no signal
	assert.Equal(t, 0.0, PeerShortfall(4.5, 2))
	assert.InDelta(t, 0.5, PeerShortfall(1.5, 3), 1e-9)
	assert.Equal(t, 1.0, PeerShortfall(0, 1))
}
