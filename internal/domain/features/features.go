// Package features turns raw match records into fixed-order numeric vectors.
package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/matchcast/internal/domain/model"
	"gonum.org/v1/gonum/mat"
)

// Column indexes of the feature vector.
const (
	ColVenueCode = iota
	ColOppCode
	ColHour
	ColDayCode
	ColXG
	ColXGA
	ColPoss
	ColAttendance
	ColSh
	ColSoT
	ColDist
	ColPK
	ColFK
	ColPKAtt
	Width
)

// Columns names every feature in vector order.
var Columns = [Width]string{
	"venue_code", "opp_code", "hour", "day_code",
	"xg", "xga", "poss", "attendance", "sh", "sot", "dist", "pk", "fk", "pkatt",
}

// StatColumns names the raw statistic columns in model.Stats.Values order.
var StatColumns = [10]string{"xg", "xga", "poss", "attendance", "sh", "sot", "dist", "pk", "fk", "pkatt"}

var (
	ErrInvalidHour = errors.New("invalid hour")
	ErrInvalidDate = errors.New("invalid date")
	ErrNoMatches   = errors.New("no matches")
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
}

// missingTokens are cell values treated as absent.
var missingTokens = map[string]struct{}{
	"": {}, "na": {}, "nan": {}, "<nil>": {}, "null": {},
}

func isMissing(s string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// Encoder assigns each distinct category value its index in sorted order.
type Encoder struct {
	values []string
	codes  map[string]int
}

// NewEncoder builds an Encoder over the observed values. Missing cells
// (blank, NA, ...) get no code.
func NewEncoder(observed []string) *Encoder {
	codes := make(map[string]int)
	for _, v := range observed {
		if isMissing(v) {
			continue
		}
		codes[v] = 0
	}
	values := make([]string, 0, len(codes))
	for v := range codes {
		values = append(values, v)
	}
	sort.Strings(values)
	for i, v := range values {
		codes[v] = i
	}
	return &Encoder{values: values, codes: codes}
}

// Code returns the index of v and whether it was observed.
func (e *Encoder) Code(v string) (int, bool) {
	c, ok := e.codes[v]
	return c, ok
}

// Len is the number of distinct values.
func (e *Encoder) Len() int { return len(e.values) }

// Values returns the sorted distinct values.
func (e *Encoder) Values() []string {
	out := make([]string, len(e.values))
	copy(out, e.values)
	return out
}

// ParseHour reads the hour from a "HH:MM..." time string: the text before
// the first colon, or the whole string when there is none.
func ParseHour(s string) (int, error) {
	head, _, _ := strings.Cut(s, ":")
	h, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHour, s)
	}
	return h, nil
}

// ParseDate parses a calendar date in one of the accepted layouts.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// DayCode returns the weekday with Monday=0 ... Sunday=6, or NaN for a
// missing date.
func DayCode(t time.Time) float64 {
	if t.IsZero() {
		return math.NaN()
	}
	return float64((int(t.Weekday()) + 6) % 7)
}

// ParseStat converts a numeric cell, returning NaN when it is absent or not
// a number.
func ParseStat(s string) float64 {
	s = strings.TrimSpace(s)
	if isMissing(s) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Deriver maps matches to feature vectors using category codes fixed at
// construction.
type Deriver struct {
	venues    *Encoder
	opponents *Encoder
}

// NewDeriver fixes category codes over every match of the loaded dataset.
func NewDeriver(matches []model.Match) *Deriver {
	venues := make([]string, len(matches))
	opponents := make([]string, len(matches))
	for i, m := range matches {
		venues[i] = m.Venue
		opponents[i] = m.Opponent
	}
	return &Deriver{venues: NewEncoder(venues), opponents: NewEncoder(opponents)}
}

// Venues exposes the venue encoder.
func (d *Deriver) Venues() *Encoder { return d.venues }

// Opponents exposes the opponent encoder.
func (d *Deriver) Opponents() *Encoder { return d.opponents }

// Derive returns the feature vector of m. Unknown categories become NaN.
func (d *Deriver) Derive(m model.Match) []float64 {
	row := make([]float64, Width)
	row[ColVenueCode] = code(d.venues, m.Venue)
	row[ColOppCode] = code(d.opponents, m.Opponent)
	row[ColHour] = float64(m.Hour)
	row[ColDayCode] = DayCode(m.Date)
	copy(row[ColXG:], m.Stats.Values())
	return row
}

// Matrix stacks the feature vectors of matches into a rows x Width matrix.
func (d *Deriver) Matrix(matches []model.Match) (*mat.Dense, error) {
	if len(matches) == 0 {
		return nil, ErrNoMatches
	}
	data := make([]float64, 0, len(matches)*Width)
	for _, m := range matches {
		data = append(data, d.Derive(m)...)
	}
	return mat.NewDense(len(matches), Width, data), nil
}

func code(e *Encoder, v string) float64 {
	if isMissing(v) {
		return math.NaN()
	}
	c, ok := e.Code(v)
	if !ok {
		return math.NaN()
	}
	return float64(c)
}
