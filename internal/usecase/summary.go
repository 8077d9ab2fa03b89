package usecase

import (
	"github.com/montanaflynn/stats"

	"github.com/naka-gawa/commit-board/internal/domain"
)

// Summarize computes organization-wide commit figures. An empty input yields
// a zero Summary.
func Summarize(teams []domain.TeamRecord) domain.Summary {
	if len(teams) == 0 {
		return domain.Summary{}
	}

	data := make(stats.Float64Data, 0, len(teams))
	for _, t := range teams {
		data = append(data, float64(t.Commits))
	}

	// The stats functions only fail on empty input, which is excluded above.
	total, _ := data.Sum()
	mean, _ := data.Mean()
	median, _ := data.Median()
	maxCommits, _ := data.Max()

	return domain.Summary{
		Teams:        len(teams),
		TotalCommits: int(total),
		Mean:         mean,
		Median:       median,
		Max:          int(maxCommits),
	}
}
