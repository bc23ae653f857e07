package wave_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuwacunu/tsiemene/wave"
)

func TestParseWaveMinimal(t *testing.T) {
	src := `
WAVE main {
	MODE train
	SAMPLER sequential
	EPOCHS 1
	BATCH_SIZE 4
	MAX_BATCHES_PER_EPOCH 100
	WIKIMYEI PATH tsi.wikimyei.representation.vicreg.default TRAIN true PROFILE_ID p1
	SOURCE PATH tsi.source.dataloader SYMBOL BTCUSD FROM 01.01.2024 TO 02.01.2024
}
`
	p, err := wave.NewParser(src)
	require.NoError(t, err)
	doc, err := p.Parse()
	require.NoError(t, err)
	require.Len(t, doc.Waves, 1)

	w := doc.Waves[0]
	require.Equal(t, "main", w.Name)
	require.Equal(t, wave.ModeTrain, w.Mode)
	require.Equal(t, wave.SamplerSequential, w.Sampler)
	require.EqualValues(t, 1, w.Epochs)
	require.EqualValues(t, 4, w.BatchSize)
	require.Len(t, w.WikimyeiEntries, 1)
	require.True(t, w.WikimyeiEntries[0].Train)
	require.Equal(t, "p1", w.WikimyeiEntries[0].ProfileID)
	require.Len(t, w.SourceEntries, 1)
	require.Equal(t, "BTCUSD", w.SourceEntries[0].Symbol)
	require.True(t, w.SourceEntries[0].From.Before(w.SourceEntries[0].To))

	require.NoError(t, wave.Validate(w))
}

func TestValidateRejectsRunModeWithTrainedWikimyei(t *testing.T) {
	src := `
WAVE main {
	MODE run
	SAMPLER sequential
	EPOCHS 1
	BATCH_SIZE 4
	MAX_BATCHES_PER_EPOCH 1
	WIKIMYEI PATH tsi.wikimyei.representation.vicreg.default TRAIN true
}
`
	p, err := wave.NewParser(src)
	require.NoError(t, err)
	doc, err := p.Parse()
	require.NoError(t, err)
	err = wave.Validate(doc.Waves[0])
	require.Error(t, err)
	require.Contains(t, err.Error(), "forbids")
}

func TestValidateRejectsTrainModeWithoutTrainedWikimyei(t *testing.T) {
	src := `
WAVE main {
	MODE train
	SAMPLER random
	EPOCHS 1
	BATCH_SIZE 1
	MAX_BATCHES_PER_EPOCH 1
	WIKIMYEI PATH tsi.wikimyei.representation.vicreg.default TRAIN false
}
`
	p, err := wave.NewParser(src)
	require.NoError(t, err)
	doc, err := p.Parse()
	require.NoError(t, err)
	err = wave.Validate(doc.Waves[0])
	require.Error(t, err)
	require.Contains(t, err.Error(), "requires at least one")
}

func TestValidateAgainstCircuitRejectsMissingPath(t *testing.T) {
	src := `
WAVE main {
	MODE run
	SAMPLER sequential
	EPOCHS 1
	BATCH_SIZE 1
	MAX_BATCHES_PER_EPOCH 1
	SOURCE PATH tsi.source.dataloader SYMBOL BTCUSD FROM 01.01.2024 TO 02.01.2024
}
`
	p, err := wave.NewParser(src)
	require.NoError(t, err)
	doc, err := p.Parse()
	require.NoError(t, err)

	err = wave.ValidateAgainstCircuit(doc.Waves[0], map[string]bool{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "is not present in the circuit")
}

func TestParsePayloadKeyValueOnlyBecomesSourceCommand(t *testing.T) {
	p, err := wave.ParsePayload("symbol:BTCUSD,from:01.01.2024,to:02.01.2024")
	require.NoError(t, err)
	require.False(t, p.HasWaveRef)
	require.True(t, p.HasSymbol)
	require.Equal(t, "BTCUSD", p.Symbol)
	require.True(t, p.HasSpan)
	require.True(t, p.SpanBegin.Before(p.SpanEnd))
	require.Equal(t, "symbol:BTCUSD,from:01.01.2024,to:02.01.2024", p.SourceCommand)
}

func TestParsePayloadWithWaveRefAndSourceCommand(t *testing.T) {
	p, err := wave.ParsePayload("main@symbol:BTCUSD,batch:3@fetch-latest")
	require.NoError(t, err)
	require.True(t, p.HasWaveRef)
	require.Equal(t, "main", p.WaveRef)
	require.True(t, p.HasBatch)
	require.EqualValues(t, 3, p.Batch)
	require.Equal(t, "fetch-latest", p.SourceCommand)
}

func TestParsePayloadRejectsYearBefore1970(t *testing.T) {
	_, err := wave.ParsePayload("from:01.01.1960,to:02.01.1960")
	require.Error(t, err)
}

func TestParsePayloadRejectsUnbalancedSpan(t *testing.T) {
	_, err := wave.ParsePayload("from:01.01.2024")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must both be present")
}

func TestParsePayloadFromMs(t *testing.T) {
	p, err := wave.ParsePayload("from_ms:1000,to_ms:2000")
	require.NoError(t, err)
	require.True(t, p.HasSpan)
	require.Equal(t, time.UnixMilli(1000).UTC(), p.SpanBegin)
	require.Equal(t, time.UnixMilli(2000).UTC(), p.SpanEnd)
}
