package contract_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuwacunu/tsiemene/contract"
	"github.com/cuwacunu/tsiemene/runtimectx"
	"github.com/cuwacunu/tsiemene/wave"
)

func sampleBundle() contract.Bundle {
	return contract.Bundle{
		CircuitText:             "main = { dl = tsi.source.dataloader }",
		ObservationSourcesText:  "sources",
		ObservationChannelsText: "channels",
		JkimyeiSpecsText:        "JKSPEC 1",
	}
}

func TestHashIsStableAndSensitiveToContent(t *testing.T) {
	b1 := sampleBundle()
	b2 := sampleBundle()
	require.Equal(t, contract.Hash(b1), contract.Hash(b2))

	b2.CircuitText += " "
	require.NotEqual(t, contract.Hash(b1), contract.Hash(b2))
}

func TestMarshalRoundTrip(t *testing.T) {
	c := contract.New(sampleBundle())
	data, err := contract.Marshal(c)
	require.NoError(t, err)

	got, err := contract.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, c.Hash, got.Hash)
	require.Equal(t, c.Bundle, got.Bundle)
}

func TestUnmarshalRejectsUnsupportedVersion(t *testing.T) {
	_, err := contract.Unmarshal([]byte(`{"version":99,"bundle":{}}`))
	require.Error(t, err)
}

func TestRegistryResolve(t *testing.T) {
	r := contract.NewRegistry()
	c := contract.New(sampleBundle())
	r.PutContract(c)

	waveText := `
WAVE main {
	MODE run
	SAMPLER sequential
	EPOCHS 1
	BATCH_SIZE 1
	MAX_BATCHES_PER_EPOCH 1
}
`
	p, err := wave.NewParser(waveText)
	require.NoError(t, err)
	doc, err := p.Parse()
	require.NoError(t, err)
	waveHash := r.PutWave(waveText, doc.Waves[0])

	gotC, gotW, err := r.Resolve(c.Hash, waveHash)
	require.NoError(t, err)
	require.Equal(t, c.Hash, gotC.Hash)
	require.Equal(t, "main", gotW.Name)
}

func TestRegistryResolveUnknownHash(t *testing.T) {
	r := contract.NewRegistry()
	_, _, err := r.Resolve(contract.New(sampleBundle()).Hash, contract.New(sampleBundle()).Hash)
	require.Error(t, err)
}

func TestProfileOverrideIsScopedPerContract(t *testing.T) {
	rc := runtimectx.New(nil)
	c1 := contract.New(sampleBundle())
	b2 := sampleBundle()
	b2.JkimyeiSpecsText = "JKSPEC 2"
	c2 := contract.New(b2)

	contract.SetProfileOverride(rc, c1, "enc", "fast")
	_, ok := contract.ProfileOverride(rc, c2, "enc")
	require.False(t, ok)

	got, ok := contract.ProfileOverride(rc, c1, "enc")
	require.True(t, ok)
	require.Equal(t, "fast", got)
}
