// Package risk maps group-relative statistics and auxiliary signals to a
// free-rider risk score. It keeps two related measures deliberately separate:
// the weighted risk score in [0,1] that drives automated flagging, and the
// raw percentage-below-average shown to humans in evidence views.
package risk

// Tier is a discrete classification band.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Risk-score tier boundaries (0-1 scale).
const (
	HighRiskThreshold   = 0.7
	MediumRiskThreshold = 0.4
)

// Below-average tier boundaries (0-100 scale), for evidence display only.
const (
	HighBelowAvgPct   = 70.0
	MediumBelowAvgPct = 40.0
)

// Component weights of the risk score. Percentage-below-average dominates
// since it is the group-relative measure; commit and peer shortfalls are
// corroborating signals.
const (
	belowAvgWeight = 0.5
	commitWeight   = 0.3
	peerWeight     = 0.2

	// neutralRating is the midpoint of the 1-5 rating scale below which a
	// peer-review shortfall accrues.
	neutralRating = 3.0
)

// Input carries everything Evaluate needs for one student.
type Input struct {
	PctBelowAverage float64 // 0-100
	CommitCount     int
	GroupAvgCommits float64
	PeerReviewAvg   float64 // 1-5 scale, 0 when no reviews received
	ReviewCount     int
}

// Assessment is the per-student evaluation result. RiskScore/RiskTier drive
// automated flagging; PctBelowAverage/BelowAverageTier are the display
// measure and must never be conflated with the former.
type Assessment struct {
	RiskScore        float64 `json:"risk_score"`
	RiskTier         Tier    `json:"risk_tier"`
	PctBelowAverage  float64 `json:"pct_below_average"`
	BelowAverageTier Tier    `json:"below_average_tier"`
}

// Evaluate combines the weighted components into a risk score and classifies
// both measures.
func Evaluate(in Input) Assessment {
	score := belowAvgWeight*(clamp01(in.PctBelowAverage/100)) +
		commitWeight*CommitShortfall(in.CommitCount, in.GroupAvgCommits) +
		peerWeight*PeerShortfall(in.PeerReviewAvg, in.ReviewCount)

	return Assessment{
		RiskScore:        clamp01(score),
		RiskTier:         ClassifyRisk(clamp01(score)),
		PctBelowAverage:  in.PctBelowAverage,
		BelowAverageTier: ClassifyBelowAverage(in.PctBelowAverage),
	}
}

// CommitShortfall measures how far a student's commits fall under the group
// average, in [0,1]. A zero group average carries no signal.
func CommitShortfall(commits int, groupAvg float64) float64 {
	if groupAvg <= 0 {
		return 0
	}
	return clamp01(1 - float64(commits)/groupAvg)
}

// PeerShortfall measures how far the average received rating falls under the
// neutral midpoint, in [0,1]. No reviews means no signal.
func PeerShortfall(avgRating float64, reviewCount int) float64 {
	if reviewCount == 0 {
		return 0
	}
	return clamp01((neutralRating - avgRating) / neutralRating)
}

// ClassifyRisk tiers a risk score: High >= 0.7, Medium >= 0.4, else Low.
func ClassifyRisk(score float64) Tier {
	switch {
	case score >= HighRiskThreshold:
		return TierHigh
	case score >= MediumRiskThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// ClassifyBelowAverage tiers the raw percentage-below-average measure:
// High >= 70%, Medium >= 40%, else Low.
func ClassifyBelowAverage(pct float64) Tier {
	switch {
	case pct >= HighBelowAvgPct:
		return TierHigh
	case pct >= MediumBelowAvgPct:
		return TierMedium
	default:
		return TierLow
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
