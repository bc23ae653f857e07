package board_test

import (
	"context"
	"encoding/binary"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuwacunu/tsiemene/board"
	"github.com/cuwacunu/tsiemene/circuit"
	"github.com/cuwacunu/tsiemene/contract"
	"github.com/cuwacunu/tsiemene/internal/boardcfg"
	"github.com/cuwacunu/tsiemene/internal/boardmetrics"
	"github.com/cuwacunu/tsiemene/jkspec"
	"github.com/cuwacunu/tsiemene/runtimectx"
	"github.com/cuwacunu/tsiemene/typeregistry"
	"github.com/cuwacunu/tsiemene/wave"

	"github.com/prometheus/client_golang/prometheus"
)

const circuitSrc = `
main = {
	dl = tsi.source.dataloader
	enc = tsi.wikimyei.representation.vicreg.default
	out = tsi.sink.null

	dl@payload:tensor -> enc@payload
	enc@payload:tensor -> out@payload
	enc@loss:tensor -> out@loss
}
`

const jkspecDoc = `
JKSPEC 1
COMPONENT "dl" "Source" {
  ACTIVE_PROFILE: "default"
  PROFILE "default" {
    DATA_REF { observation_spec: "btc_1h" }
  }
}
COMPONENT "enc" "Wikimyei" {
  ACTIVE_PROFILE: "default"
  PROFILE "default" {
    OPTIMIZER Adam { lr: 0.01 }
    LR_SCHEDULER StepLR { step_size: 10 }
    LOSS VicReg { lambda_sim: 25.0 lambda_std: 25.0 lambda_cov: 1.0 }
    COMPONENT_PARAMS {
      encoder_hidden_dims: [8]
      encoder_depth: 1
      channel_expansion_dim: 6
      fused_feature_dim: 8
      projector_mlp_spec: "8-8"
      augmentation_set: "aug1"
    }
  }
  AUGMENTATIONS "aug1" {
    Linear {
      curve_param: 1.0
      noise_scale: 0.1
      smoothing_kernel_size: 1
    }
  }
}
COMPONENT "out" "Sink" {
  ACTIVE_PROFILE: "default"
  PROFILE "default" {}
}
`

func waveSrc(maxBatchesPerEpoch int, train bool) string {
	trainWord := "false"
	if train {
		trainWord = "true"
	}
	return `
WAVE main {
	MODE train
	SAMPLER sequential
	EPOCHS 1
	BATCH_SIZE 3
	MAX_BATCHES_PER_EPOCH ` + itoa(maxBatchesPerEpoch) + `
	WIKIMYEI PATH tsi.wikimyei.representation.vicreg.default TRAIN ` + trainWord + `
	SOURCE PATH tsi.source.dataloader SYMBOL BTCUSD FROM 01.01.2024 TO 02.01.2024
}
`
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

// writeChannelFile writes n monotonically increasing records of featureWidth
// float64 features each, in the 8-byte-key + 8-byte-feature little-endian
// layout observation.OpenChannel expects.
func writeChannelFile(t *testing.T, path string, n, featureWidth int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 8+8*featureWidth)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(buf[0:8], uint64(i*60_000))
		for j := 0; j < featureWidth; j++ {
			binary.LittleEndian.PutUint64(buf[8+8*j:16+8*j], math.Float64bits(float64(i+j)))
		}
		_, err := f.Write(buf)
		require.NoError(t, err)
	}
}

func buildTables(t *testing.T) *jkspec.Tables {
	t.Helper()
	tables, err := jkspec.Decode(jkspecDoc, jkspec.DefaultSchemaIndex())
	require.NoError(t, err)
	return tables
}

func buildCircuit(t *testing.T) *circuit.Circuit {
	t.Helper()
	p, err := circuit.NewParser(circuitSrc)
	require.NoError(t, err)
	doc, err := p.Parse()
	require.NoError(t, err)
	require.Len(t, doc.Circuits, 1)
	return doc.Circuits[0]
}

func buildWave(t *testing.T, maxBatchesPerEpoch int, train bool) *wave.Wave {
	t.Helper()
	p, err := wave.NewParser(waveSrc(maxBatchesPerEpoch, train))
	require.NoError(t, err)
	doc, err := p.Parse()
	require.NoError(t, err)
	require.Len(t, doc.Waves, 1)
	return doc.Waves[0]
}

func buildObservationSpec(t *testing.T, root string, featureWidth, records int) board.ObservationSpec {
	t.Helper()
	require.NoError(t, os.MkdirAll(root, 0o755))
	writeChannelFile(t, filepath.Join(root, "BTCUSD_1m.bin"), records, featureWidth)
	return board.ObservationSpec{
		Channels: []board.ChannelSpec{
			{Symbol: "BTCUSD", Interval: "1m", Root: root, FeatureWidth: featureWidth},
		},
	}
}

func buildSpec(t *testing.T, maxBatchesPerEpoch int, train bool) *board.Spec {
	t.Helper()
	dir := t.TempDir()
	obs := buildObservationSpec(t, dir, 4, 30)
	c := buildCircuit(t)
	w := buildWave(t, maxBatchesPerEpoch, train)
	tables := buildTables(t)
	bundle := contract.Bundle{CircuitText: circuitSrc, JkimyeiSpecsText: jkspecDoc}
	return &board.Spec{
		Contract:    contract.New(bundle),
		WaveText:    waveSrc(maxBatchesPerEpoch, train),
		Circuit:     c,
		Wave:        w,
		Tables:      tables,
		Observation: obs,
		SeqLen:      5,
	}
}

func buildCtx() *board.Ctx {
	rc := runtimectx.New(nil)
	reg := typeregistry.Default()
	return board.NewCtx(rc, reg, 7, nil)
}

func TestInstantiateBuildsTypedNodesInDeclarationOrder(t *testing.T) {
	spec := buildSpec(t, 2, true)
	ctx := buildCtx()

	bc, err := board.Instantiate(spec, ctx)
	require.NoError(t, err)

	require.Equal(t, "main", bc.Name)
	require.Equal(t, []string{"dl", "enc", "out"}, bc.Order)
	require.Len(t, bc.Nodes, 3)
	require.Contains(t, bc.Nodes, "dl")
	require.Contains(t, bc.Nodes, "enc")
	require.Contains(t, bc.Nodes, "out")

	require.Equal(t, "dl", bc.Nodes["dl"].InstanceName())
	require.Equal(t, "enc@main.enc", bc.Nodes["enc"].ID())

	require.Len(t, bc.HopsFrom["dl"], 1)
	require.Equal(t, "enc", bc.HopsFrom["dl"][0].ToAlias)
	require.Len(t, bc.HopsFrom["enc"], 2)
	require.Equal(t, "out", bc.HopsFrom["enc"][0].ToAlias)

	require.Equal(t, "ingress", bc.SeedIngress.Directive)
	require.True(t, bc.SeedWave.SpanBegin.Before(bc.SeedWave.SpanEnd))

	require.Equal(t, circuitSrc, bc.DSLSegments.CircuitText)
	require.NotEmpty(t, bc.WaveText)
}

func TestInstantiateRejectsUnknownComponent(t *testing.T) {
	spec := buildSpec(t, 2, true)
	spec.Tables = &jkspec.Tables{}
	ctx := buildCtx()

	_, err := board.Instantiate(spec, ctx)
	require.Error(t, err)
}

func TestInstantiateRegistersWaveProfileOverride(t *testing.T) {
	src := `
WAVE main {
	MODE train
	SAMPLER sequential
	EPOCHS 1
	BATCH_SIZE 3
	MAX_BATCHES_PER_EPOCH 2
	WIKIMYEI PATH tsi.wikimyei.representation.vicreg.default TRAIN true PROFILE_ID alt
	SOURCE PATH tsi.source.dataloader SYMBOL BTCUSD FROM 01.01.2024 TO 02.01.2024
}
`
	p, err := wave.NewParser(src)
	require.NoError(t, err)
	doc, err := p.Parse()
	require.NoError(t, err)

	spec := buildSpec(t, 2, true)
	spec.Wave = doc.Waves[0]
	ctx := buildCtx()

	_, err = board.Instantiate(spec, ctx)
	require.NoError(t, err)

	got, ok := contract.ProfileOverride(ctx.RC, spec.Contract, "enc")
	require.True(t, ok)
	require.Equal(t, "alt", got)
}

func TestExecutorRunDrivesBatchesToSinkAndReportsLoss(t *testing.T) {
	spec := buildSpec(t, 2, true)
	reg := prometheus.NewRegistry()
	ctx := buildCtx()
	ctx.Metrics = boardmetrics.NewRegistry(reg)

	bc, err := board.Instantiate(spec, ctx)
	require.NoError(t, err)

	ex := board.NewExecutor(boardcfg.LocalRunParameters(), ctx.Metrics, nil)
	n, err := ex.Run(context.Background(), bc, nil)
	require.NoError(t, err)
	require.Greater(t, n, int64(0))

	loss := ctx.Metrics.Averager("main_out_loss", "")
	require.NotEqual(t, float64(0), loss.Read())
}

func TestExecutorRunStopsImmediatelyWhenAlreadyCancelled(t *testing.T) {
	spec := buildSpec(t, 2, true)
	ctx := buildCtx()

	bc, err := board.Instantiate(spec, ctx)
	require.NoError(t, err)

	cancel := board.NewCancelToken()
	cancel.Cancel()

	ex := board.NewExecutor(boardcfg.LocalRunParameters(), nil, nil)
	n, err := ex.Run(context.Background(), bc, cancel)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}

func TestExecutorRunFailsOnContextCancellation(t *testing.T) {
	spec := buildSpec(t, 2, true)
	ctx := buildCtx()

	bc, err := board.Instantiate(spec, ctx)
	require.NoError(t, err)

	runCtx, cancelFn := context.WithCancel(context.Background())
	cancelFn()

	ex := board.NewExecutor(boardcfg.LocalRunParameters(), nil, nil)
	_, err = ex.Run(runCtx, bc, nil)
	require.Error(t, err)
}

func TestExecutorRunRejectsInvalidBudget(t *testing.T) {
	spec := buildSpec(t, 2, true)
	ctx := buildCtx()

	bc, err := board.Instantiate(spec, ctx)
	require.NoError(t, err)

	ex := board.NewExecutor(boardcfg.ExecutionBudget{}, nil, nil)
	_, err = ex.Run(context.Background(), bc, nil)
	require.Error(t, err)
}

func TestExecutorRunWithoutTrainingStillForwardsPayload(t *testing.T) {
	spec := buildSpec(t, 1, false)
	ctx := buildCtx()

	bc, err := board.Instantiate(spec, ctx)
	require.NoError(t, err)

	ex := board.NewExecutor(boardcfg.LocalRunParameters(), nil, nil)
	n, err := ex.Run(context.Background(), bc, nil)
	require.NoError(t, err)
	require.Greater(t, n, int64(0))
}

func TestBuildSeed(t *testing.T) {
	require.NotNil(t, rand.New(rand.NewSource(1)))
	require.NotZero(t, time.Second)
}
