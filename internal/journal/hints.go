package journal

// #region imports
import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/danielpatrickdp/turnpilot/internal/directive"
)

// #endregion

// #region direction-stats

// HalfLife is the age at which an observation counts half as much.
const HalfLife = 2 * time.Hour

// minSamples is the number of verified attempts needed before a direction
// is reported.
const minSamples = 2

// DirectionStat is the decay-weighted movement rate for one direction on one map.
type DirectionStat struct {
	Button  directive.Button
	Rate    float64
	Samples int
}

// DirectionStats returns per-direction success rates for turns that started on
// the given map. Only SUCCESS and FAILED turns count. Directions with fewer
// than minSamples attempts are omitted. Results are ordered by button.
func (s *Store) DirectionStats(mapGroup, mapNum int) ([]DirectionStat, error) {
	rows, err := s.db.Query(`
		SELECT primary_button, result, created_at
		FROM turn_records
		WHERE map_group = ? AND map_num = ? AND primary_button IS NOT NULL
		  AND result IN ('SUCCESS', 'FAILED')`,
		mapGroup, mapNum,
	)
	if err != nil {
		return nil, fmt.Errorf("query direction stats: %w", err)
	}
	defer rows.Close()

	type accum struct {
		weightedSum float64
		totalWeight float64
		count       int
	}

	now := s.now()
	halfLife := HalfLife.Hours()
	acc := make(map[directive.Button]*accum)

	for rows.Next() {
		var button, result, createdAtStr string
		if err := rows.Scan(&button, &result, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scan direction stat: %w", err)
		}
		createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			continue
		}
		ageHours := math.Max(0, now.Sub(createdAt).Hours())
		weight := math.Exp(-ageHours * math.Ln2 / halfLife)

		b := directive.Button(button)
		a, ok := acc[b]
		if !ok {
			a = &accum{}
			acc[b] = a
		}
		if result == "SUCCESS" {
			a.weightedSum += weight
		}
		a.totalWeight += weight
		a.count++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []DirectionStat
	for b, a := range acc {
		if a.count < minSamples || a.totalWeight == 0 {
			continue
		}
		out = append(out, DirectionStat{Button: b, Rate: a.weightedSum / a.totalWeight, Samples: a.count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Button < out[j].Button })
	return out, nil
}

// #endregion

// #region hints

// Hints renders DirectionStats as prompt lines.
func (s *Store) Hints(mapGroup, mapNum int) ([]string, error) {
	stats, err := s.DirectionStats(mapGroup, mapNum)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(stats))
	for _, st := range stats {
		out = append(out, fmt.Sprintf("%s moved you %.0f%% of the time (%d attempts)", st.Button, st.Rate*100, st.Samples))
	}
	return out, nil
}

// #endregion
