package scraper

import (
	"slices"
	"time"
)

// Dedupe keeps the first record of every key and drops later ones observed
// strictly within window of an already kept record, then sorts newest first.
// Applying it to its own output returns the same set.
func Dedupe(records []Record, window time.Duration) []Record {
	kept := make([]Record, 0, len(records))
	byKey := make(map[string][]time.Time)

	for _, r := range records {
		k := r.DedupKey()
		at := r.ObservedAt()
		dup := false
		for _, t := range byKey[k] {
			if absDuration(at.Sub(t)) < window {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		byKey[k] = append(byKey[k], at)
		kept = append(kept, r)
	}

	SortNewestFirst(kept)
	return kept
}

func SortNewestFirst(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		return b.ObservedAt().Compare(a.ObservedAt())
	})
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
