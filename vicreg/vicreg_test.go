package vicreg_test

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/cuwacunu/tsiemene/jkspec"
	"github.com/cuwacunu/tsiemene/vicreg"
)

func floatVal(f float64) jkspec.Value { return jkspec.Value{Kind: jkspec.KindFloat, FloatV: f} }
func intVal(n int64) jkspec.Value     { return jkspec.Value{Kind: jkspec.KindInt, IntV: n} }

func row(fields map[string]jkspec.Value) jkspec.Row {
	return jkspec.Row{RowID: "r", Fields: fields}
}

func TestParseProjectorWidths(t *testing.T) {
	widths, err := vicreg.ParseProjectorWidths("128-256-218")
	require.NoError(t, err)
	require.Equal(t, []int64{128, 256, 218}, widths)

	_, err = vicreg.ParseProjectorWidths("128")
	require.Error(t, err)
	_, err = vicreg.ParseProjectorWidths("128-abc")
	require.Error(t, err)
}

func TestBuildOptimizerEachType(t *testing.T) {
	cases := []vicreg.BuilderSpec{
		{Type: "SGD", Row: row(map[string]jkspec.Value{"lr": floatVal(0.1)})},
		{Type: "Adam", Row: row(map[string]jkspec.Value{"lr": floatVal(0.001)})},
		{Type: "AdamW", Row: row(map[string]jkspec.Value{"lr": floatVal(0.001)})},
		{Type: "RMSprop", Row: row(map[string]jkspec.Value{"lr": floatVal(0.01)})},
		{Type: "Adagrad", Row: row(map[string]jkspec.Value{"lr": floatVal(0.01)})},
	}
	for _, c := range cases {
		opt, err := vicreg.BuildOptimizer(c)
		require.NoError(t, err, c.Type)
		require.NotNil(t, opt, c.Type)
	}
	_, err := vicreg.BuildOptimizer(vicreg.BuilderSpec{Type: "Nope"})
	require.Error(t, err)
}

func TestBuildSchedulerEachType(t *testing.T) {
	cases := []vicreg.BuilderSpec{
		{Type: "ConstantLR", Row: row(nil)},
		{Type: "StepLR", Row: row(map[string]jkspec.Value{"step_size": intVal(2)})},
		{Type: "MultiStepLR", Row: row(map[string]jkspec.Value{"milestones": {Kind: jkspec.KindIntList, ListV: []jkspec.Value{intVal(1), intVal(3)}}})},
		{Type: "ExponentialLR", Row: row(nil)},
		{Type: "ReduceLROnPlateau", Row: row(nil)},
		{Type: "OneCycleLR", Row: row(map[string]jkspec.Value{"max_lr": floatVal(0.1), "total_steps": intVal(10)})},
		{Type: "CosineAnnealingLR", Row: row(map[string]jkspec.Value{"t_max": intVal(10)})},
		{Type: "WarmupLR", Row: row(map[string]jkspec.Value{"warmup_steps": intVal(5), "base_lr": floatVal(0.1)})},
	}
	for _, c := range cases {
		sched, err := vicreg.BuildScheduler(c)
		require.NoError(t, err, c.Type)
		require.NotNil(t, sched, c.Type)
	}
}

func TestBuildLossEachType(t *testing.T) {
	cases := []vicreg.BuilderSpec{
		{Type: "VicReg", Row: row(map[string]jkspec.Value{
			"lambda_sim": floatVal(25), "lambda_std": floatVal(25), "lambda_cov": floatVal(1),
		})},
		{Type: "MeanSquaredError", Row: row(nil)},
		{Type: "CrossEntropy", Row: row(nil)},
	}
	for _, c := range cases {
		l, err := vicreg.BuildLoss(c)
		require.NoError(t, err, c.Type)
		require.NotNil(t, l, c.Type)
	}
}

func TestVicRegLossZeroWhenViewsIdentical(t *testing.T) {
	l, err := vicreg.BuildLoss(vicreg.BuilderSpec{Type: "VicReg", Row: row(map[string]jkspec.Value{
		"lambda_sim": floatVal(25), "lambda_std": floatVal(0), "lambda_cov": floatVal(0),
	})})
	require.NoError(t, err)
	za := mat.NewDense(4, 3, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 1, 1, 1})
	value, gradA, gradB := l.Compute(za, za)
	require.InDelta(t, 0, value, 1e-9)
	rows, cols := gradA.Dims()
	require.Equal(t, 4, rows)
	require.Equal(t, 3, cols)
	require.NotNil(t, gradB)
}

func sampleSpec() *vicreg.Spec {
	return &vicreg.Spec{
		ComponentID: "enc",
		Encoder: vicreg.EncoderSpec{
			HiddenDims:          []int64{8},
			Depth:               1,
			ChannelExpansionDim: 6,
			FusedFeatureDim:     8,
			Dtype:               "f32",
		},
		Projector: vicreg.ProjectorSpec{
			WidthSpec:  "8-8",
			Widths:     []int64{8, 8},
			Norm:       "None",
			Activation: "ReLU",
		},
		Optimizer: vicreg.BuilderSpec{Type: "Adam", Row: row(map[string]jkspec.Value{"lr": floatVal(0.01)})},
		Loss: vicreg.BuilderSpec{Type: "VicReg", Row: row(map[string]jkspec.Value{
			"lambda_sim": floatVal(25), "lambda_std": floatVal(25), "lambda_cov": floatVal(1),
		})},
	}
}

func sampleBatch(b, c, tLen, d int) ([][][][]float64, [][][]bool) {
	x := make([][][][]float64, b)
	m := make([][][]bool, b)
	rng := rand.New(rand.NewSource(1))
	for bi := range x {
		x[bi] = make([][][]float64, c)
		m[bi] = make([][]bool, c)
		for ci := range x[bi] {
			x[bi][ci] = make([][]float64, tLen)
			m[bi][ci] = make([]bool, tLen)
			for ti := range x[bi][ci] {
				row := make([]float64, d)
				for j := range row {
					row[j] = rng.Float64()
				}
				x[bi][ci][ti] = row
				m[bi][ci][ti] = true
			}
		}
	}
	return x, m
}

func TestInstantiateAndTrainStep(t *testing.T) {
	spec := sampleSpec()
	rng := rand.New(rand.NewSource(7))
	model, err := vicreg.Instantiate(spec, "enc@circuit.alias", 2, 5, 4, rng)
	require.NoError(t, err)

	xa, ma := sampleBatch(3, 2, 5, 4)
	xb, mb := sampleBatch(3, 2, 5, 4)

	value, err := model.TrainStep(xa, xb, ma, mb)
	require.NoError(t, err)
	require.False(t, value < 0)
}

func TestInstantiateRejectsMismatchedProjectorWidth(t *testing.T) {
	spec := sampleSpec()
	spec.Projector.Widths = []int64{99, 8}
	_, err := vicreg.Instantiate(spec, "x", 2, 5, 4, rand.New(rand.NewSource(1)))
	require.Error(t, err)
}

func TestCheckpointSaveLoadRoundTrip(t *testing.T) {
	spec := sampleSpec()
	rng := rand.New(rand.NewSource(3))
	model, err := vicreg.Instantiate(spec, "enc@circuit.alias", 2, 5, 4, rng)
	require.NoError(t, err)

	xa, ma := sampleBatch(3, 2, 5, 4)
	xb, mb := sampleBatch(3, 2, 5, 4)
	_, err = model.TrainStep(xa, xb, ma, mb)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "ckpt.bin")
	require.NoError(t, model.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))

	loaded, err := vicreg.Load(path, spec, nil)
	require.NoError(t, err)
	require.Equal(t, model.ComponentName, loaded.ComponentName)
	require.Equal(t, model.Encoder.E, loaded.Encoder.E)

	wOrig := model.Encoder.Expansion.W
	wLoaded := loaded.Encoder.Expansion.W
	rows, cols := wOrig.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			require.InDelta(t, wOrig.At(r, c), wLoaded.At(r, c), 1e-9)
		}
	}
}
