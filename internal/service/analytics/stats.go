package analytics

import (
	"math"

	"github.com/kapu/channel-ranking-go/internal/constants"
	"github.com/kapu/channel-ranking-go/internal/domain"
)

// Baseline is the population distribution of a channel's view counts.
type Baseline struct {
	Count  int
	Mean   float64
	StdDev float64
}

// ComputeBaseline returns the population mean and standard deviation (divides by N).
func ComputeBaseline(views []int64) Baseline {
	n := len(views)
	if n == 0 {
		return Baseline{}
	}

	var sum float64
	for _, v := range views {
		sum += float64(v)
	}
	mean := sum / float64(n)

	var squared float64
	for _, v := range views {
		d := float64(v) - mean
		squared += d * d
	}

	return Baseline{
		Count:  n,
		Mean:   mean,
		StdDev: math.Sqrt(squared / float64(n)),
	}
}

// Degenerate is true when every sample is identical and no score can be computed.
func (b Baseline) Degenerate() bool {
	return b.StdDev == 0
}

func (b Baseline) ZScore(views int64) float64 {
	if b.Degenerate() {
		return 0
	}
	return (float64(views) - b.Mean) / b.StdDev
}

func (b Baseline) Multiplier(views int64) float64 {
	if b.Mean == 0 {
		return 0
	}
	return float64(views) / b.Mean
}

// ClassifyViralLevel maps a z-score to its tier. Boundaries are closed below.
func ClassifyViralLevel(z float64) (domain.ViralLevel, bool) {
	switch {
	case z >= constants.Analytics.DiamondZScore:
		return domain.ViralLevelDiamond, true
	case z >= constants.Analytics.GoldZScore:
		return domain.ViralLevelGold, true
	case z >= constants.Analytics.SilverZScore:
		return domain.ViralLevelSilver, true
	case z >= constants.Analytics.ViralZScore:
		return domain.ViralLevelBronze, true
	default:
		return "", false
	}
}

// Percentile is the share of samples strictly below views, in [0, 100). Ties do not count.
func Percentile(views []int64, target int64) float64 {
	if len(views) == 0 {
		return 0
	}
	below := 0
	for _, v := range views {
		if v < target {
			below++
		}
	}
	return float64(below) / float64(len(views)) * 100
}
