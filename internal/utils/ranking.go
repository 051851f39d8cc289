package utils

import (
	"math"
	"time"
)

type RankConfig struct {
	Gravity        float64
	WeightReaction float64
	WeightFork     float64
	WeightBookmark float64
	WeightView     float64
	ScaleFactor    float64
}

var DefaultRankConfig = RankConfig{
	Gravity:        1.2,
	WeightReaction: 1.0,
	WeightFork:     3.0,
	WeightBookmark: 2.0,
	WeightView:     0.1,
	ScaleFactor:    100.0,
}

// EngagementSum is the undecayed weighted engagement of a thread.
func EngagementSum(reactions, forks, bookmarks, views int) float64 {
	c := DefaultRankConfig
	return float64(reactions)*c.WeightReaction +
		float64(forks)*c.WeightFork +
		float64(bookmarks)*c.WeightBookmark +
		float64(views)*c.WeightView
}

// TrendScore smooths the engagement sum logarithmically and decays it by the
// age of the thread in hours.
func TrendScore(createdAt time.Time, reactions, forks, bookmarks, views int) float64 {
	hours := time.Since(createdAt).Hours()
	if hours < 0 {
		hours = 0
	}
	sum := EngagementSum(reactions, forks, bookmarks, views)
	if sum < 0 {
		sum = 0
	}
	numerator := math.Log10(sum+1) * DefaultRankConfig.ScaleFactor
	return numerator / math.Pow(hours+2, DefaultRankConfig.Gravity)
}
