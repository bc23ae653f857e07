package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cuwacunu/tsiemene/board"
	"github.com/cuwacunu/tsiemene/circuit"
	"github.com/cuwacunu/tsiemene/contract"
	"github.com/cuwacunu/tsiemene/internal/boardcfg"
	"github.com/cuwacunu/tsiemene/internal/boardmetrics"
	"github.com/cuwacunu/tsiemene/internal/errctx"
	"github.com/cuwacunu/tsiemene/internal/logx"
	"github.com/cuwacunu/tsiemene/jkspec"
	"github.com/cuwacunu/tsiemene/runtimectx"
	"github.com/cuwacunu/tsiemene/typeregistry"
	"github.com/cuwacunu/tsiemene/wave"
)

// observationManifest is the JSON shape a run/train caller provides for the
// decoded observation spec input; the observation.channels DSL itself is
// out of scope (see internal board design notes), so this manifest is the
// CLI's resolved stand-in for it.
type observationManifest struct {
	Channels []struct {
		Symbol       string `json:"symbol"`
		Interval     string `json:"interval"`
		Root         string `json:"root"`
		FeatureWidth int    `json:"feature_width"`
	} `json:"channels"`
}

func loadObservationSpec(path string) (board.ObservationSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return board.ObservationSpec{}, errctx.Wrap(errctx.CodeIO, err, "reading observation manifest %q", path)
	}
	var m observationManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return board.ObservationSpec{}, errctx.Wrap(errctx.CodeIO, err, "decoding observation manifest %q", path)
	}
	spec := board.ObservationSpec{}
	for _, c := range m.Channels {
		spec.Channels = append(spec.Channels, board.ChannelSpec{
			Symbol:       c.Symbol,
			Interval:     c.Interval,
			Root:         c.Root,
			FeatureWidth: c.FeatureWidth,
		})
	}
	return spec, nil
}

func loadCircuit(path, waveName string) (*circuit.Circuit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errctx.Wrap(errctx.CodeIO, err, "reading circuit file %q", path)
	}
	p, err := circuit.NewParser(string(data))
	if err != nil {
		return nil, err
	}
	doc, err := p.Parse()
	if err != nil {
		return nil, err
	}
	if len(doc.Circuits) == 0 {
		return nil, errctx.New(errctx.CodeSchema, "circuit file %q declares no circuits", path)
	}
	return doc.Circuits[0], nil
}

func loadWave(path, waveName string) (*wave.Wave, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errctx.Wrap(errctx.CodeIO, err, "reading wave file %q", path)
	}
	p, err := wave.NewParser(string(data))
	if err != nil {
		return nil, err
	}
	doc, err := p.Parse()
	if err != nil {
		return nil, err
	}
	w, ok := doc.ByName(waveName)
	if !ok {
		return nil, errctx.New(errctx.CodeSchema, "wave file %q has no WAVE block named %q", path, waveName)
	}
	return w, nil
}

func loadTables(path string) (*jkspec.Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errctx.Wrap(errctx.CodeIO, err, "reading jkspec file %q", path)
	}
	return jkspec.Decode(string(data), jkspec.DefaultSchemaIndex())
}

func buildSpec(circuitPath, wavePath, jkspecPath, observationPath, waveName string, seqLen int) (*board.Spec, error) {
	circuitText, err := os.ReadFile(circuitPath)
	if err != nil {
		return nil, errctx.Wrap(errctx.CodeIO, err, "reading circuit file %q", circuitPath)
	}
	waveText, err := os.ReadFile(wavePath)
	if err != nil {
		return nil, errctx.Wrap(errctx.CodeIO, err, "reading wave file %q", wavePath)
	}
	jkspecText, err := os.ReadFile(jkspecPath)
	if err != nil {
		return nil, errctx.Wrap(errctx.CodeIO, err, "reading jkspec file %q", jkspecPath)
	}

	c, err := loadCircuit(circuitPath, waveName)
	if err != nil {
		return nil, err
	}
	w, err := loadWave(wavePath, waveName)
	if err != nil {
		return nil, err
	}
	tables, err := loadTables(jkspecPath)
	if err != nil {
		return nil, err
	}

	var obs board.ObservationSpec
	if observationPath != "" {
		obs, err = loadObservationSpec(observationPath)
		if err != nil {
			return nil, err
		}
	}

	bundle := contract.Bundle{
		CircuitText:      string(circuitText),
		JkimyeiSpecsText: string(jkspecText),
	}
	return &board.Spec{
		Contract:    contract.New(bundle),
		WaveText:    string(waveText),
		Circuit:     c,
		Wave:        w,
		Tables:      tables,
		Observation: obs,
		SeqLen:      seqLen,
	}, nil
}

func runValidate(circuitPath, wavePath, jkspecPath, waveName string) error {
	spec, err := buildSpec(circuitPath, wavePath, jkspecPath, "", waveName, 1)
	if err != nil {
		return err
	}
	ctx := board.NewCtx(runtimectx.New(nil), typeregistry.Default(), 1, logx.NewNoOp())
	if _, err := board.Instantiate(spec, ctx); err != nil {
		return err
	}
	fmt.Println("circuit and wave are valid")
	return nil
}

func runExecute(circuitPath, wavePath, jkspecPath, observationPath, waveName string, seqLen int, seed int64) error {
	return execute(circuitPath, wavePath, jkspecPath, observationPath, waveName, seqLen, seed, nil)
}

func runTrain(circuitPath, wavePath, jkspecPath, observationPath, waveName string, seqLen int, seed int64) error {
	reg := prometheus.NewRegistry()
	return execute(circuitPath, wavePath, jkspecPath, observationPath, waveName, seqLen, seed, boardmetrics.NewRegistry(reg))
}

func execute(circuitPath, wavePath, jkspecPath, observationPath, waveName string, seqLen int, seed int64, metrics *boardmetrics.Registry) error {
	spec, err := buildSpec(circuitPath, wavePath, jkspecPath, observationPath, waveName, seqLen)
	if err != nil {
		return err
	}

	log := logx.New()
	boardCtx := board.NewCtx(runtimectx.New(log), typeregistry.Default(), seed, log)
	boardCtx.Metrics = metrics

	bc, err := board.Instantiate(spec, boardCtx)
	if err != nil {
		return err
	}

	budget := boardcfg.DefaultExecutionBudget()
	if metrics != nil {
		budget = boardcfg.TrainingRunParameters()
	}
	ex := board.NewExecutor(budget, metrics, log)

	n, err := ex.Run(context.Background(), bc, nil)
	if err != nil {
		return errctx.Wrap(errctx.CodeState, err, "executor run failed after %d events", n)
	}
	fmt.Printf("executor processed %d events\n", n)
	return nil
}
