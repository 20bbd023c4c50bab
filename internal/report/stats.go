package report

import (
	"math"

	"github.com/stemsi/exstem-room/internal/model"
)

// Bucket counts submissions whose score falls in [From, To). The last
// bucket also takes scores at or above its upper bound.
type Bucket struct {
	Label string  `json:"label"`
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Count int     `json:"count"`
}

// Stats summarizes a room's results.
type Stats struct {
	Count   int      `json:"count"`
	Average float64  `json:"average"`
	Highest float64  `json:"highest"`
	Lowest  float64  `json:"lowest"`
	Buckets []Bucket `json:"buckets"`
}

func newBuckets() []Bucket {
	return []Bucket{
		{Label: "0-2", From: 0, To: 2},
		{Label: "2-4", From: 2, To: 4},
		{Label: "4-6", From: 4, To: 6},
		{Label: "6-8", From: 6, To: 8},
		{Label: "8-10", From: 8, To: 10},
	}
}

// Summarize computes count, average (2 decimals), extremes and the score
// histogram. An empty room yields zeros and empty buckets.
func Summarize(subs []model.Submission) Stats {
	st := Stats{Count: len(subs), Buckets: newBuckets()}
	if len(subs) == 0 {
		return st
	}

	total := 0.0
	st.Highest = math.Inf(-1)
	st.Lowest = math.Inf(1)
	for _, sub := range subs {
		total += sub.Score
		st.Highest = math.Max(st.Highest, sub.Score)
		st.Lowest = math.Min(st.Lowest, sub.Score)
		st.Buckets[bucketIndex(sub.Score)].Count++
	}
	st.Average = math.Round(total/float64(len(subs))*100) / 100
	return st
}

func bucketIndex(score float64) int {
	switch {
	case score < 2:
		return 0
	case score < 4:
		return 1
	case score < 6:
		return 2
	case score < 8:
		return 3
	default:
		return 4
	}
}
