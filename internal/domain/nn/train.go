package nn

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Train fits the network on (x, y) with mini-batch Adam. When valX is not
// nil the validation split is scored after every epoch; it never influences
// the parameters. Training checks ctx between batches.
func (n *Network) Train(ctx context.Context, x, y, valX, valY mat.Matrix, opts ...TrainOption) (History, error) {
	var settings trainSettings
	for _, opt := range opts {
		opt(&settings)
	}
	if err := n.checkData(x, y); err != nil {
		return nil, err
	}
	if valX != nil {
		if err := n.checkData(valX, valY); err != nil {
			return nil, fmt.Errorf("validation: %w", err)
		}
	}

	xs := mat.DenseCopyOf(x)
	ys := mat.DenseCopyOf(y)
	rows, _ := xs.Dims()

	history := make(History, 0, n.cfg.Epochs)
	for epoch := 1; epoch <= n.cfg.Epochs; epoch++ {
		order := n.rng.Perm(rows)
		for start := 0; start < rows; start += n.cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return history, fmt.Errorf("training interrupted at epoch %d: %w", epoch, err)
			}
			end := min(start+n.cfg.BatchSize, rows)
			bx, by := gather(xs, ys, order[start:end])
			n.step++
			n.backward(bx, by)
		}

		stats := EpochStats{Epoch: epoch}
		var err error
		if stats.Loss, stats.Accuracy, err = n.Evaluate(xs, ys); err != nil {
			return history, fmt.Errorf("evaluate epoch %d: %w", epoch, err)
		}
		if valX != nil {
			if stats.ValLoss, stats.ValAccuracy, err = n.Evaluate(valX, valY); err != nil {
				return history, fmt.Errorf("validate epoch %d: %w", epoch, err)
			}
		}
		history = append(history, stats)
		if settings.onEpoch != nil {
			settings.onEpoch(stats)
		}
	}
	return history, nil
}

func gather(x, y *mat.Dense, idx []int) (*mat.Dense, *mat.Dense) {
	_, xc := x.Dims()
	_, yc := y.Dims()
	bx := mat.NewDense(len(idx), xc, nil)
	by := mat.NewDense(len(idx), yc, nil)
	for i, r := range idx {
		bx.SetRow(i, x.RawRowView(r))
		by.SetRow(i, y.RawRowView(r))
	}
	return bx, by
}

// backward runs one forward pass with dropout, back-propagates the
// cross-entropy gradient and applies an Adam step.
func (n *Network) backward(x, y *mat.Dense) {
	batch, _ := x.Dims()
	keep := 1 - n.cfg.Dropout

	acts := make([]*mat.Dense, len(n.layers)) // input of each layer
	pre := make([]*mat.Dense, len(n.layers))  // pre-activation of hidden layers
	masks := make([]*mat.Dense, len(n.layers))

	a := x
	for i, l := range n.layers {
		acts[i] = a
		z := l.forward(a)
		if !l.relu {
			softmaxRows(z)
			a = z
			break
		}
		pre[i] = mat.DenseCopyOf(z)
		z.Apply(relu, z)
		if n.cfg.Dropout > 0 {
			r, c := z.Dims()
			mask := mat.NewDense(r, c, nil)
			mask.Apply(func(_, _ int, _ float64) float64 {
				if n.rng.Float64() < keep {
					return 1 / keep
				}
				return 0
			}, mask)
			z.MulElem(z, mask)
			masks[i] = mask
		}
		a = z
	}

	// Softmax with cross-entropy: dL/dz = (p - y) / batch.
	var dz mat.Dense
	dz.Sub(a, y)
	dz.Scale(1/float64(batch), &dz)

	for i := len(n.layers) - 1; i >= 0; i-- {
		l := n.layers[i]

		var dw mat.Dense
		dw.Mul(acts[i].T(), &dz)
		if l.l2 > 0 {
			var reg mat.Dense
			reg.Scale(2*l.l2, l.w)
			dw.Add(&dw, &reg)
		}
		_, out := dz.Dims()
		db := make([]float64, out)
		for j := 0; j < out; j++ {
			db[j] = mat.Sum(dz.ColView(j))
		}

		if i > 0 {
			var da mat.Dense
			da.Mul(&dz, l.w.T())
			prev := i - 1
			if masks[prev] != nil {
				da.MulElem(&da, masks[prev])
			}
			da.Apply(func(r, c int, v float64) float64 {
				if pre[prev].At(r, c) <= 0 {
					return 0
				}
				return v
			}, &da)
			n.adam(l, &dw, db)
			dz = da
			continue
		}
		n.adam(l, &dw, db)
	}
}

func (n *Network) adam(l *dense, dw *mat.Dense, db []float64) {
	b1, b2, eps := n.cfg.Beta1, n.cfg.Beta2, n.cfg.Epsilon
	t := float64(n.step)
	lr := n.cfg.LearningRate * math.Sqrt(1-math.Pow(b2, t)) / (1 - math.Pow(b1, t))

	rows, cols := l.w.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g := dw.At(r, c)
			m := b1*l.mw.At(r, c) + (1-b1)*g
			v := b2*l.vw.At(r, c) + (1-b2)*g*g
			l.mw.Set(r, c, m)
			l.vw.Set(r, c, v)
			l.w.Set(r, c, l.w.At(r, c)-lr*m/(math.Sqrt(v)+eps))
		}
	}
	for j, g := range db {
		l.mb[j] = b1*l.mb[j] + (1-b1)*g
		l.vb[j] = b2*l.vb[j] + (1-b2)*g*g
		l.b[j] -= lr * l.mb[j] / (math.Sqrt(l.vb[j]) + eps)
	}
}
