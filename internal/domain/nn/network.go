// Package nn implements the feed-forward outcome classifier: ReLU hidden
// layers with dropout and L2 penalties, a softmax output, trained with Adam
// on categorical cross-entropy.
package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const probClip = 1e-7

var (
	ErrInvalidConfig = errors.New("invalid network config")
	ErrShape         = errors.New("shape mismatch")
	ErrNoData        = errors.New("no training data")
)

// EpochStats reports one training epoch. Loss values include the L2 penalty.
type EpochStats struct {
	Epoch       int
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
}

// History lists epoch statistics in order.
type History []EpochStats

// Last returns the final epoch, or the zero value when empty.
func (h History) Last() EpochStats {
	if len(h) == 0 {
		return EpochStats{}
	}
	return h[len(h)-1]
}

type dense struct {
	w    *mat.Dense // in x out
	b    []float64
	relu bool
	l2   float64

	mw, vw *mat.Dense
	mb, vb []float64
}

func newDense(in, out int, relu bool, l2 float64, rng *rand.Rand) *dense {
	limit := math.Sqrt(6 / float64(in+out))
	w := make([]float64, in*out)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
	return &dense{
		w:    mat.NewDense(in, out, w),
		b:    make([]float64, out),
		relu: relu,
		l2:   l2,
		mw:   mat.NewDense(in, out, nil),
		vw:   mat.NewDense(in, out, nil),
		mb:   make([]float64, out),
		vb:   make([]float64, out),
	}
}

func (d *dense) forward(a mat.Matrix) *mat.Dense {
	rows, _ := a.Dims()
	_, out := d.w.Dims()
	z := mat.NewDense(rows, out, nil)
	z.Mul(a, d.w)
	for i := 0; i < rows; i++ {
		floats.Add(z.RawRowView(i), d.b)
	}
	return z
}

func (d *dense) penalty() float64 {
	if d.l2 == 0 {
		return 0
	}
	raw := d.w.RawMatrix().Data
	return d.l2 * floats.Dot(raw, raw)
}

// Network is a trained or trainable classifier. It is safe for concurrent
// Predict calls once training has returned.
type Network struct {
	cfg     Config
	inputs  int
	outputs int
	layers  []*dense
	rng     *rand.Rand
	step    int
}

// New builds a network with Glorot-uniform kernels and zero biases.
func New(inputs, outputs int, cfg Config) (*Network, error) {
	switch {
	case inputs <= 0 || outputs <= 0:
		return nil, fmt.Errorf("%w: inputs %d outputs %d", ErrInvalidConfig, inputs, outputs)
	case cfg.Dropout < 0 || cfg.Dropout >= 1:
		return nil, fmt.Errorf("%w: dropout %v", ErrInvalidConfig, cfg.Dropout)
	case cfg.Epochs <= 0 || cfg.BatchSize <= 0 || cfg.LearningRate <= 0:
		return nil, fmt.Errorf("%w: epochs, batch size and learning rate must be positive", ErrInvalidConfig)
	}
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // reproducible training

	n := &Network{cfg: cfg, inputs: inputs, outputs: outputs, rng: rng}
	in := inputs
	for _, width := range cfg.Hidden {
		if width <= 0 {
			return nil, fmt.Errorf("%w: hidden width %d", ErrInvalidConfig, width)
		}
		n.layers = append(n.layers, newDense(in, width, true, cfg.L2, rng))
		in = width
	}
	n.layers = append(n.layers, newDense(in, outputs, false, 0, rng))
	return n, nil
}

// Inputs is the expected feature width.
func (n *Network) Inputs() int { return n.inputs }

// Outputs is the number of classes.
func (n *Network) Outputs() int { return n.outputs }

// Predict returns class probabilities for one feature vector.
func (n *Network) Predict(x []float64) ([]float64, error) {
	if len(x) != n.inputs {
		return nil, fmt.Errorf("%w: got %d features, want %d", ErrShape, len(x), n.inputs)
	}
	p := n.infer(mat.NewDense(1, n.inputs, append([]float64(nil), x...)))
	return p.RawRowView(0), nil
}

// PredictBatch returns a rows x classes probability matrix.
func (n *Network) PredictBatch(x mat.Matrix) (*mat.Dense, error) {
	if _, c := x.Dims(); c != n.inputs {
		return nil, fmt.Errorf("%w: got %d features, want %d", ErrShape, c, n.inputs)
	}
	return n.infer(x), nil
}

func (n *Network) infer(x mat.Matrix) *mat.Dense {
	a := mat.DenseCopyOf(x)
	for _, l := range n.layers {
		z := l.forward(a)
		if l.relu {
			z.Apply(relu, z)
		}
		a = z
	}
	softmaxRows(a)
	return a
}

// Evaluate returns the penalized loss and accuracy on labelled data without
// changing any parameter.
func (n *Network) Evaluate(x, y mat.Matrix) (loss, accuracy float64, err error) {
	if err := n.checkData(x, y); err != nil {
		return 0, 0, err
	}
	p := n.infer(x)
	return crossEntropy(p, y) + n.penalty(), accuracyOf(p, y), nil
}

func (n *Network) penalty() float64 {
	var s float64
	for _, l := range n.layers {
		s += l.penalty()
	}
	return s
}

func (n *Network) checkData(x, y mat.Matrix) error {
	xr, xc := x.Dims()
	yr, yc := y.Dims()
	switch {
	case xr == 0:
		return ErrNoData
	case xc != n.inputs:
		return fmt.Errorf("%w: got %d features, want %d", ErrShape, xc, n.inputs)
	case yc != n.outputs:
		return fmt.Errorf("%w: got %d target columns, want %d", ErrShape, yc, n.outputs)
	case xr != yr:
		return fmt.Errorf("%w: %d samples but %d targets", ErrShape, xr, yr)
	}
	return nil
}

func relu(_, _ int, v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func softmaxRows(z *mat.Dense) {
	rows, _ := z.Dims()
	for i := 0; i < rows; i++ {
		row := z.RawRowView(i)
		floats.AddConst(-floats.Max(row), row)
		for j, v := range row {
			row[j] = math.Exp(v)
		}
		floats.Scale(1/floats.Sum(row), row)
	}
}

func crossEntropy(p, y mat.Matrix) float64 {
	rows, cols := p.Dims()
	var s float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if t := y.At(i, j); t != 0 {
				s -= t * math.Log(math.Min(math.Max(p.At(i, j), probClip), 1-probClip))
			}
		}
	}
	return s / float64(rows)
}

func accuracyOf(p *mat.Dense, y mat.Matrix) float64 {
	rows, cols := p.Dims()
	target := make([]float64, cols)
	correct := 0
	for i := 0; i < rows; i++ {
		mat.Row(target, i, y)
		if floats.MaxIdx(p.RawRowView(i)) == floats.MaxIdx(target) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

// OneHot encodes class indexes as a rows x classes matrix.
func OneHot(classes []int, width int) (*mat.Dense, error) {
	if len(classes) == 0 {
		return nil, ErrNoData
	}
	y := mat.NewDense(len(classes), width, nil)
	for i, c := range classes {
		if c < 0 || c >= width {
			return nil, fmt.Errorf("%w: class %d outside [0, %d)", ErrShape, c, width)
		}
		y.Set(i, c, 1)
	}
	return y, nil
}

// Argmax returns the index of the largest probability.
func Argmax(p []float64) int {
	return floats.MaxIdx(p)
}
