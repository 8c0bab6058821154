package nn

// Config describes the topology and training schedule of a Network.
type Config struct {
	// Hidden lists the widths of the ReLU hidden layers.
	Hidden []int
	// Dropout is the drop probability applied after every hidden layer
	// during training.
	Dropout float64
	// L2 is the kernel penalty coefficient of every hidden layer.
	L2 float64

	// Adam parameters.
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	Epochs    int
	BatchSize int
	Seed      int64
}

// DefaultConfig returns the 128-64-32 topology trained for 100 epochs.
func DefaultConfig() Config {
	return Config{
		Hidden:       []int{128, 64, 32},
		Dropout:      0.5,
		L2:           0.01,
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
		Epochs:       100,
		BatchSize:    32,
		Seed:         42,
	}
}

// TrainOption customizes a single Train call.
type TrainOption func(*trainSettings)

type trainSettings struct {
	onEpoch func(EpochStats)
}

// WithEpochHook registers fn to run after every epoch.
func WithEpochHook(fn func(EpochStats)) TrainOption {
	return func(s *trainSettings) {
		if fn != nil {
			s.onEpoch = fn
		}
	}
}
