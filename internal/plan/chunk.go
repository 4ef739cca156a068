package plan

import "math"

// Threshold returns the size a group must strictly exceed before it closes.
func Threshold(targetAverage, toleranceFraction float64) float64 {
	return math.Floor(targetAverage - targetAverage*toleranceFraction)
}

// TargetAverage returns floor(total size / days). It returns 0 when days is
// not positive.
func TargetAverage(units UnitList, days int) float64 {
	if days <= 0 {
		return 0
	}
	return float64(units.TotalSize() / int64(days))
}

// BuildChunks walks units in order and closes a group as soon as its running
// size exceeds Threshold(targetAverage, toleranceFraction). A trailing
// remainder becomes the last group regardless of its size. A threshold of zero
// or below puts every unit in its own group.
func BuildChunks(units UnitList, targetAverage, toleranceFraction float64) Partition {
	return buildChunks(units, targetAverage, toleranceFraction, nil)
}

func buildChunks(units UnitList, targetAverage, toleranceFraction float64, obs Observer) Partition {
	threshold := Threshold(targetAverage, toleranceFraction)
	out := make(Partition, 0, estimateGroups(units, threshold))

	var (
		sum   int64
		count int
		start Unit
	)
	for _, u := range units {
		if count == 0 {
			start = u
		}
		sum += u.Size
		count++
		if float64(sum) > threshold {
			out = append(out, Group{Start: start, End: u, AccumulatedSize: sum, Units: count})
			sum, count = 0, 0
		}
	}
	if count > 0 {
		out = append(out, Group{Start: start, End: units[len(units)-1], AccumulatedSize: sum, Units: count})
	}

	if obs != nil {
		obs.ObserveChunks(len(out))
	}
	return out
}

func estimateGroups(units UnitList, threshold float64) int {
	if threshold <= 0 || len(units) == 0 {
		return len(units)
	}
	n := int(float64(units.TotalSize())/threshold) + 1
	if n > len(units) {
		return len(units)
	}
	return n
}
