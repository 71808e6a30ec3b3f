// Summary statistics for sampled metric values
package calc

import "sort"

// Summary of one collection interval's samples
type Summary struct {
	Count       int
	Min         uint64
	Max         uint64
	TrimmedMean uint64
}

// Summarizes samples, trimming trimPercent of extreme values from each end before averaging
func Summarize(samples []uint64, trimPercent float64) (summary Summary) {
	summary.Count = len(samples)
	if summary.Count == 0 {
		return
	}

	sorted := make([]uint64, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	summary.Min = sorted[0]
	summary.Max = sorted[len(sorted)-1]
	summary.TrimmedMean = trimmedMean(sorted, trimPercent)
	return
}

// Mean of sorted values after dropping trimPercent from each end (at least one value remains)
func trimmedMean(sorted []uint64, trimPercent float64) (mean uint64) {
	if trimPercent < 0 {
		trimPercent = 0
	}

	n := len(sorted)
	trimCount := int(float64(n) * trimPercent)
	if trimCount*2 >= n {
		trimCount = (n - 1) / 2
	}

	var sum uint64
	kept := sorted[trimCount : n-trimCount]
	for _, value := range kept {
		sum += value
	}
	mean = sum / uint64(len(kept))
	return
}
