// Package predictor replays the fitted pipeline over a team's historical
// matches and scores the predictions against the recorded results.
package predictor

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/matchcast/internal/domain/model"
	"github.com/okian/matchcast/internal/domain/nn"
	"github.com/okian/matchcast/internal/domain/pipeline"
	"github.com/okian/matchcast/internal/domain/types"
)

const dateLayout = "2006-01-02"

var (
	// ErrTeamRequired is returned for a blank team identifier.
	ErrTeamRequired = errors.New("team is required")
	// ErrTeamNotFound is returned when the team has no historical matches.
	ErrTeamNotFound = errors.New("team not found")
)

// Predict scores every match of team with the fitted context. Results keep
// the table order.
func Predict(ctx context.Context, fitted *pipeline.Fitted, team string) (types.Report, error) {
	if team == "" {
		return types.Report{}, ErrTeamRequired
	}

	var rows []model.Match
	for _, m := range fitted.Matches() {
		if m.Team == team {
			rows = append(rows, m)
		}
	}
	if len(rows) == 0 {
		return types.Report{}, fmt.Errorf("%w: %q", ErrTeamNotFound, team)
	}

	results := make([]types.MatchPrediction, 0, len(rows))
	correct := 0
	for _, m := range rows {
		if err := ctx.Err(); err != nil {
			return types.Report{}, err
		}
		predicted, err := classify(fitted, m)
		if err != nil {
			return types.Report{}, err
		}
		if predicted == m.Result {
			correct++
		}
		results = append(results, types.MatchPrediction{
			Team:         team,
			Opponent:     m.Opponent,
			Prediction:   string(predicted),
			ActualResult: string(m.Result),
			Venue:        m.Venue,
			Date:         formatDate(m),
		})
	}

	return types.Report{
		Accuracy: Accuracy(correct, len(results)),
		Results:  results,
		ModelID:  fitted.ID(),
	}, nil
}

// Accuracy returns correct/total as a percentage, 0 for no rows.
func Accuracy(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}

func classify(fitted *pipeline.Fitted, m model.Match) (model.Outcome, error) {
	x, err := fitted.Features(m)
	if err != nil {
		return "", fmt.Errorf("features: %w", err)
	}
	probs, err := fitted.Classifier().Predict(x)
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	if len(probs) != model.NumOutcomes {
		return "", fmt.Errorf("classify: got %d probabilities, want %d", len(probs), model.NumOutcomes)
	}
	return model.OutcomeFromClass(nn.Argmax(probs))
}

func formatDate(m model.Match) *string {
	if !m.HasDate() {
		return nil
	}
	s := m.Date.Format(dateLayout)
	return &s
}
