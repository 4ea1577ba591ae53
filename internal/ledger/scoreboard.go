package ledger

import (
	"strconv"

	"github.com/tegward/housepoints/internal/model"
)

// ScoreboardRow is one team's aggregate on the scoreboard.
type ScoreboardRow struct {
	Team  model.Team `json:"team"`
	Total int        `json:"total"`
}

// Scoreboard sums each team's group totals over the types flagged
// include_in_total. This is the only place that flag is honored;
// per-user totals always sum every enabled type.
func (s *Service) Scoreboard() ([]ScoreboardRow, error) {
	totals, err := s.Totals()
	if err != nil {
		return nil, err
	}

	rows := make([]ScoreboardRow, 0, len(s.cfg.Teams))
	for _, team := range s.cfg.Teams {
		gk := strconv.FormatInt(team.GroupID, 10)
		groupTotals := totals.ByGroup[gk]

		sum := 0
		for _, pt := range s.cfg.EnabledTypes() {
			if !pt.IncludeInTotal {
				continue
			}
			sum += groupTotals[pt.TypeID]
		}
		rows = append(rows, ScoreboardRow{Team: team, Total: sum})
	}
	return rows, nil
}
