// Package preprocess holds the fit-once, apply-anywhere column transforms:
// mean imputation and standardization.
package preprocess

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrUndefinedStatistic is returned when a column has no observed value.
	ErrUndefinedStatistic = errors.New("undefined column statistic")
	// ErrEmptyMatrix is returned when fitting on zero rows.
	ErrEmptyMatrix = errors.New("empty matrix")
	// ErrWidthMismatch is returned when a row does not match the fitted width.
	ErrWidthMismatch = errors.New("width mismatch")
)

// Imputer replaces missing (NaN) values with fitted column means.
type Imputer struct {
	means []float64
}

// FitImputer computes per-column means of x ignoring NaN.
func FitImputer(x mat.Matrix) (*Imputer, error) {
	rows, cols := x.Dims()
	if rows == 0 {
		return nil, ErrEmptyMatrix
	}
	means := make([]float64, cols)
	observed := make([]float64, 0, rows)
	for j := 0; j < cols; j++ {
		observed = observed[:0]
		for i := 0; i < rows; i++ {
			if v := x.At(i, j); !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		if len(observed) == 0 {
			return nil, fmt.Errorf("%w: column %d has no observed values", ErrUndefinedStatistic, j)
		}
		means[j] = stat.Mean(observed, nil)
	}
	return &Imputer{means: means}, nil
}

// NewImputer builds an Imputer from known means.
func NewImputer(means []float64) *Imputer {
	return &Imputer{means: append([]float64(nil), means...)}
}

// Means returns a copy of the fitted means.
func (im *Imputer) Means() []float64 { return append([]float64(nil), im.means...) }

// Width is the number of fitted columns.
func (im *Imputer) Width() int { return len(im.means) }

// TransformRow returns row with missing values replaced.
func (im *Imputer) TransformRow(row []float64) ([]float64, error) {
	if len(row) != len(im.means) {
		return nil, fmt.Errorf("%w: got %d columns, fitted %d", ErrWidthMismatch, len(row), len(im.means))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		if math.IsNaN(v) {
			v = im.means[j]
		}
		out[j] = v
	}
	return out, nil
}

// Transform returns a copy of x with missing values replaced.
func (im *Imputer) Transform(x mat.Matrix) (*mat.Dense, error) {
	if _, c := x.Dims(); c != len(im.means) {
		return nil, fmt.Errorf("%w: got %d columns, fitted %d", ErrWidthMismatch, c, len(im.means))
	}
	var out mat.Dense
	out.Apply(func(_, j int, v float64) float64 {
		if math.IsNaN(v) {
			return im.means[j]
		}
		return v
	}, x)
	return &out, nil
}

// Scaler standardizes columns with fitted means and population standard
// deviations. A column with zero deviation scales to 0.
type Scaler struct {
	means []float64
	stds  []float64
}

// FitScaler computes per-column mean and population standard deviation of
// an already imputed matrix.
func FitScaler(x mat.Matrix) (*Scaler, error) {
	rows, cols := x.Dims()
	if rows == 0 {
		return nil, ErrEmptyMatrix
	}
	s := &Scaler{means: make([]float64, cols), stds: make([]float64, cols)}
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, x)
		for _, v := range col {
			if math.IsNaN(v) {
				return nil, fmt.Errorf("%w: column %d contains missing values", ErrUndefinedStatistic, j)
			}
		}
		s.means[j], s.stds[j] = stat.PopMeanStdDev(col, nil)
	}
	return s, nil
}

// NewScaler builds a Scaler from known parameters.
func NewScaler(means, stds []float64) *Scaler {
	return &Scaler{means: append([]float64(nil), means...), stds: append([]float64(nil), stds...)}
}

// Means returns a copy of the fitted means.
func (s *Scaler) Means() []float64 { return append([]float64(nil), s.means...) }

// Stds returns a copy of the fitted standard deviations.
func (s *Scaler) Stds() []float64 { return append([]float64(nil), s.stds...) }

func (s *Scaler) scale(j int, v float64) float64 {
	if s.stds[j] == 0 {
		return 0
	}
	return (v - s.means[j]) / s.stds[j]
}

func (s *Scaler) unscale(j int, v float64) float64 {
	return v*s.stds[j] + s.means[j]
}

// TransformRow standardizes one row.
func (s *Scaler) TransformRow(row []float64) ([]float64, error) {
	if len(row) != len(s.means) {
		return nil, fmt.Errorf("%w: got %d columns, fitted %d", ErrWidthMismatch, len(row), len(s.means))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = s.scale(j, v)
	}
	return out, nil
}

// Transform standardizes every row of x.
func (s *Scaler) Transform(x mat.Matrix) (*mat.Dense, error) {
	if _, c := x.Dims(); c != len(s.means) {
		return nil, fmt.Errorf("%w: got %d columns, fitted %d", ErrWidthMismatch, c, len(s.means))
	}
	var out mat.Dense
	out.Apply(func(_, j int, v float64) float64 { return s.scale(j, v) }, x)
	return &out, nil
}

// InverseRow maps a standardized row back to the original units. Zero
// deviation columns return their mean.
func (s *Scaler) InverseRow(row []float64) ([]float64, error) {
	if len(row) != len(s.means) {
		return nil, fmt.Errorf("%w: got %d columns, fitted %d", ErrWidthMismatch, len(row), len(s.means))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = s.unscale(j, v)
	}
	return out, nil
}
