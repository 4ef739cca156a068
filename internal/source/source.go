// Package source provides the chapter lists the planner partitions: a
// PostgreSQL table, a CSV file, or an in-memory list, optionally wrapped with
// retries, a circuit breaker and a short-lived cache.
package source

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/plan"
)

// Source produces the ordered chapter list. Implementations return units
// sorted by ascending Index, one per chapter.
type Source interface {
	FetchUnits(ctx context.Context) (plan.UnitList, error)
}

// Static serves a fixed list.
type Static plan.UnitList

func (s Static) FetchUnits(ctx context.Context) (plan.UnitList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(plan.UnitList, len(s))
	copy(out, s)
	return out, nil
}

// Validate checks the ordering and size contract every source must honour.
func Validate(units plan.UnitList) error {
	for i, u := range units {
		if u.Size < 0 {
			return fmt.Errorf("unit %d (%s %s) has negative size %d", u.Index, u.Label, u.GroupLabel, u.Size)
		}
		if i > 0 && u.Index <= units[i-1].Index {
			return fmt.Errorf("unit index %d does not follow %d", u.Index, units[i-1].Index)
		}
	}
	return nil
}
