package features

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/matchcast/internal/domain/model"
)

// DatePolicy decides the fate of records whose date does not parse.
type DatePolicy string

const (
	// DateCoerce keeps the record with a missing date; its day code is
	// imputed downstream.
	DateCoerce DatePolicy = "coerce"
	// DateReject drops the record.
	DateReject DatePolicy = "reject"
)

// Rejection reasons reported by ParseRecords.
const (
	ReasonInvalidResult = "invalid_result"
	ReasonInvalidTime   = "invalid_time"
	ReasonInvalidDate   = "invalid_date"
	ReasonMissingTeam   = "missing_team"
)

// ErrUnknownDatePolicy is returned for policies other than coerce and reject.
var ErrUnknownDatePolicy = errors.New("unknown date policy")

// ParseDatePolicy validates a policy name.
func ParseDatePolicy(s string) (DatePolicy, error) {
	switch p := DatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case DateCoerce, DateReject:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDatePolicy, s)
}

// Rejection describes one dropped record.
type Rejection struct {
	Line   int
	Reason string
	Err    error
}

// LoadReport summarizes record parsing.
type LoadReport struct {
	Accepted     int
	CoercedDates int
	Rejections   []Rejection
}

// RejectedBy counts rejections per reason.
func (r LoadReport) RejectedBy() map[string]int {
	out := make(map[string]int)
	for _, rej := range r.Rejections {
		out[rej.Reason]++
	}
	return out
}

// ParseRecords converts raw records into matches. Records with an unknown
// result, an unparseable hour or no team are always dropped; unparseable
// dates follow policy. Order is preserved.
func ParseRecords(records []model.Record, policy DatePolicy) ([]model.Match, LoadReport) {
	var report LoadReport
	matches := make([]model.Match, 0, len(records))

	for _, rec := range records {
		m, reason, err := parseRecord(rec, policy)
		if err != nil {
			report.Rejections = append(report.Rejections, Rejection{Line: rec.Line, Reason: reason, Err: err})
			continue
		}
		if !m.HasDate() {
			report.CoercedDates++
		}
		matches = append(matches, m)
	}
	report.Accepted = len(matches)
	return matches, report
}

func parseRecord(rec model.Record, policy DatePolicy) (model.Match, string, error) {
	team := strings.TrimSpace(rec.Team)
	if team == "" {
		return model.Match{}, ReasonMissingTeam, errors.New("missing team")
	}
	result, err := model.ParseOutcome(rec.Result)
	if err != nil {
		return model.Match{}, ReasonInvalidResult, err
	}
	hour, err := ParseHour(rec.Time)
	if err != nil {
		return model.Match{}, ReasonInvalidTime, err
	}
	date, err := ParseDate(rec.Date)
	if err != nil && policy == DateReject {
		return model.Match{}, ReasonInvalidDate, err
	}

	var stats [10]float64
	for i, cell := range rec.Stats {
		stats[i] = ParseStat(cell)
	}

	return model.Match{
		Team:     team,
		Opponent: strings.TrimSpace(rec.Opponent),
		Venue:    strings.TrimSpace(rec.Venue),
		Date:     date,
		Hour:     hour,
		Result:   result,
		Stats: model.Stats{
			XG: stats[0], XGA: stats[1], Poss: stats[2], Attendance: stats[3], Sh: stats[4],
			SoT: stats[5], Dist: stats[6], PK: stats[7], FK: stats[8], PKAtt: stats[9],
		},
	}, "", nil
}
