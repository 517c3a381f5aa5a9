// Package analytics holds the aggregation math behind exam reports. Every
// function is pure and works on already-committed records.
package analytics

import (
	"sort"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// BucketCount is the number of equal-width percentage buckets in a score
// distribution.
const BucketCount = 10

// Mean returns the arithmetic mean, or 0 for an empty sample.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median returns the middle value, averaging the two middle values for an
// even-sized sample. Returns 0 for an empty sample. values is not modified.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// SortByStanding orders results by score desc, then earliest submission.
func SortByStanding(results []model.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].SubmittedAt.Before(results[j].SubmittedAt)
	})
}

// Rank returns the 1-based standing of studentID among results and the
// number of results. rank is 0 when the student has no result.
func Rank(results []model.Result, studentID int) (rank, participants int) {
	ordered := append([]model.Result(nil), results...)
	SortByStanding(ordered)
	for i, r := range ordered {
		if r.StudentID == studentID {
			return i + 1, len(ordered)
		}
	}
	return 0, len(ordered)
}

// Percentile converts a rank into the share of participants at or below it.
// The top of n participants scores 100, the bottom 100/n.
func Percentile(rank, participants int) float64 {
	if rank <= 0 || participants <= 0 || rank > participants {
		return 0
	}
	return float64(participants-rank+1) / float64(participants) * 100
}

// Distribution buckets result percentages into BucketCount ranges of equal
// width. A perfect score lands in the last bucket.
func Distribution(results []model.Result) []model.ScoreBucket {
	width := 100 / BucketCount
	buckets := make([]model.ScoreBucket, BucketCount)
	for i := range buckets {
		buckets[i] = model.ScoreBucket{Lower: i * width, Upper: (i + 1) * width}
	}
	for i := range results {
		idx := int(results[i].Percentage()) / width
		if idx >= BucketCount {
			idx = BucketCount - 1
		}
		if idx < 0 {
			idx = 0
		}
		buckets[idx].Count++
	}
	return buckets
}

// Scores extracts raw scores as floats.
func Scores(results []model.Result) []float64 {
	out := make([]float64, len(results))
	for i, r := range results {
		out[i] = float64(r.Score)
	}
	return out
}
