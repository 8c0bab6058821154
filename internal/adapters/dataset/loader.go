// Package dataset reads the historical match table from a CSV file.
package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/okian/matchcast/internal/domain/features"
	"github.com/okian/matchcast/internal/domain/model"
	"github.com/okian/matchcast/pkg/logger"
)

// Identity columns of a match row.
const (
	ColTeam     = "team"
	ColOpponent = "opponent"
	ColVenue    = "venue"
	ColDate     = "date"
	ColTime     = "time"
	ColResult   = "result"
)

// RequiredColumns lists every header the loader needs. Other columns are ignored.
var RequiredColumns = append(
	[]string{ColTeam, ColOpponent, ColVenue, ColDate, ColTime, ColResult},
	features.StatColumns[:]...,
)

// Loader reads raw match records from a file.
type Loader struct {
	path      string
	delimiter rune
	logger    logger.Logger
}

// NewLoader creates a loader for the CSV file at path.
func NewLoader(path string, opts ...Option) *Loader {
	l := &Loader{path: path, delimiter: ','}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the file the loader reads.
func (l *Loader) Path() string { return l.path }

// Load opens the file and returns its rows as raw records.
func (l *Loader) Load(ctx context.Context) ([]model.Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer f.Close()

	records, err := Read(f, l.delimiter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.path, err)
	}
	if l.logger != nil {
		l.logger.Info(ctx, "dataset read", logger.String("path", l.path), logger.Int("rows", len(records)))
	}
	return records, nil
}

// Read parses CSV data with a header row. Every cell is read as a string;
// numeric interpretation happens in the features package. Header names are
// matched case-insensitively after trimming. Line numbers count the header
// as line 1.
func Read(r io.Reader, delimiter rune) ([]model.Record, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithDelimiter(delimiter),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, df.Err)
	}

	index := make(map[string]string, len(df.Names()))
	for _, name := range df.Names() {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := index[key]; !dup {
			index[key] = name
		}
	}
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	column := func(name string) []string {
		return df.Col(index[name]).Records()
	}
	teams := column(ColTeam)
	opponents := column(ColOpponent)
	venues := column(ColVenue)
	dates := column(ColDate)
	times := column(ColTime)
	results := column(ColResult)
	var stats [len(features.StatColumns)][]string
	for i, name := range features.StatColumns {
		stats[i] = column(name)
	}

	records := make([]model.Record, df.Nrow())
	for i := range records {
		rec := model.Record{
			Line:     i + 2,
			Team:     teams[i],
			Opponent: opponents[i],
			Venue:    venues[i],
			Date:     dates[i],
			Time:     times[i],
			Result:   results[i],
		}
		for j := range stats {
			rec.Stats[j] = stats[j][i]
		}
		records[i] = rec
	}
	return records, nil
}
