// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidOutcome is returned for result codes outside {W, L, D}.
var ErrInvalidOutcome = errors.New("invalid outcome")

// Outcome is a match result from the team's point of view.
type Outcome string

// Known outcomes. Their order is the classifier's class order.
const (
	Win  Outcome = "W"
	Loss Outcome = "L"
	Draw Outcome = "D"
)

// Outcomes lists the classes in index order.
var Outcomes = [...]Outcome{Win, Loss, Draw}

// NumOutcomes is the width of the classifier output.
const NumOutcomes = len(Outcomes)

// ParseOutcome maps a recorded result to an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(strings.ToUpper(strings.TrimSpace(s))); o {
	case Win, Loss, Draw:
		return o, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOutcome, s)
}

// Class returns the classifier index of the outcome.
func (o Outcome) Class() int {
	for i, c := range Outcomes {
		if c == o {
			return i
		}
	}
	return -1
}

// OutcomeFromClass maps a classifier index back to an Outcome.
func OutcomeFromClass(i int) (Outcome, error) {
	if i < 0 || i >= NumOutcomes {
		return "", fmt.Errorf("%w: class %d", ErrInvalidOutcome, i)
	}
	return Outcomes[i], nil
}

// Stats holds the raw numeric statistics of a match. NaN marks a missing value.
type Stats struct {
	XG         float64
	XGA        float64
	Poss       float64
	Attendance float64
	Sh         float64
	SoT        float64
	Dist       float64
	PK         float64
	FK         float64
	PKAtt      float64
}

// Values returns the statistics in feature column order.
func (s Stats) Values() []float64 {
	return []float64{s.XG, s.XGA, s.Poss, s.Attendance, s.Sh, s.SoT, s.Dist, s.PK, s.FK, s.PKAtt}
}

// Match is one historical fixture.
type Match struct {
	Team     string
	Opponent string
	Venue    string
	Date     time.Time // zero when the recorded date could not be parsed
	Hour     int
	Result   Outcome
	Stats    Stats
}

// HasDate reports whether the match date was parsed.
func (m Match) HasDate() bool { return !m.Date.IsZero() }

// Record is a raw dataset row before parsing. Stats are in Stats.Values order.
type Record struct {
	Line     int
	Team     string
	Opponent string
	Venue    string
	Date     string
	Time     string
	Result   string
	Stats    [10]string
}
