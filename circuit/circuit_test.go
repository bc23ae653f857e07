package circuit_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuwacunu/tsiemene/circuit"
	"github.com/cuwacunu/tsiemene/path"
	"github.com/cuwacunu/tsiemene/runtimectx"
	"github.com/cuwacunu/tsiemene/typeregistry"
)

func baseOf(rc *runtimectx.RuntimeContext) func(string) string {
	return func(tsiType string) string {
		d := path.Decode(rc, tsiType)
		return d.BaseWithoutHashimyei()
	}
}

func TestParseMinimalCircuit(t *testing.T) {
	src := `
main = {
	dl = tsi.source.dataloader
	enc = tsi.wikimyei.representation.vicreg.default
	out = tsi.sink.null

	dl@payload:tensor -> enc@payload
	enc@payload:tensor -> out@payload
}

main(symbol:BTCUSD,from:01.01.2024,to:02.01.2024);
`
	p, err := circuit.NewParser(src)
	require.NoError(t, err)
	doc, err := p.Parse()
	require.NoError(t, err)
	require.Len(t, doc.Circuits, 1)

	c := doc.Circuits[0]
	require.Equal(t, "main", c.Name)
	require.Len(t, c.Instances, 3)
	require.Len(t, c.Hops, 2)
	require.Equal(t, "main", c.InvokeName)
	require.Contains(t, c.InvokePayload, "symbol:BTCUSD")
}

func TestValidateMinimalCircuitSucceeds(t *testing.T) {
	src := `
main = {
	dl = tsi.source.dataloader
	enc = tsi.wikimyei.representation.vicreg.default
	out = tsi.sink.null

	dl@payload:tensor -> enc@payload
	enc@payload:tensor -> out@payload
}
`
	p, err := circuit.NewParser(src)
	require.NoError(t, err)
	doc, err := p.Parse()
	require.NoError(t, err)

	rc := runtimectx.New(nil)
	reg := typeregistry.Default()
	err = circuit.Validate(doc.Circuits[0], reg, baseOf(rc))
	require.NoError(t, err)
}

func TestValidateRejectsCycle(t *testing.T) {
	src := `
main = {
	dl = tsi.source.dataloader
	enc = tsi.wikimyei.representation.vicreg.default
	out = tsi.sink.null

	dl@payload:tensor -> enc@payload
	enc@payload:tensor -> out@payload
	out@payload:tensor -> enc@payload
}
`
	p, err := circuit.NewParser(src)
	require.NoError(t, err)
	doc, err := p.Parse()
	require.NoError(t, err)

	rc := runtimectx.New(nil)
	reg := typeregistry.Default()
	err = circuit.Validate(doc.Circuits[0], reg, baseOf(rc))
	require.Error(t, err)
	require.Contains(t, err.Error(), "cycle")
}

func TestValidateRejectsNonSinkTerminal(t *testing.T) {
	src := `
main = {
	dl = tsi.source.dataloader
	enc = tsi.wikimyei.representation.vicreg.default

	dl@payload:tensor -> enc@payload
}
`
	p, err := circuit.NewParser(src)
	require.NoError(t, err)
	doc, err := p.Parse()
	require.NoError(t, err)

	rc := runtimectx.New(nil)
	reg := typeregistry.Default()
	err = circuit.Validate(doc.Circuits[0], reg, baseOf(rc))
	require.Error(t, err)
	require.Contains(t, err.Error(), "must be a Sink type")
}

func TestValidateRejectsMultipleRoots(t *testing.T) {
	src := `
main = {
	dl = tsi.source.dataloader
	dl2 = tsi.source.dataloader
	enc = tsi.wikimyei.representation.vicreg.default
	out = tsi.sink.null

	dl@payload:tensor -> out@payload
	enc@payload:tensor -> out@payload
}
`
	p, err := circuit.NewParser(src)
	require.NoError(t, err)
	doc, err := p.Parse()
	require.NoError(t, err)

	rc := runtimectx.New(nil)
	reg := typeregistry.Default()
	err = circuit.Validate(doc.Circuits[0], reg, baseOf(rc))
	require.Error(t, err)
	require.Contains(t, err.Error(), "exactly one root")
}

func TestParseRejectsDuplicateAlias(t *testing.T) {
	src := `
main = {
	dl = tsi.source.dataloader
	dl = tsi.source.dataloader
}
`
	p, err := circuit.NewParser(src)
	require.NoError(t, err)
	_, err = p.Parse()
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate alias")
}

func TestParseInvokeUnknownCircuitIsRejected(t *testing.T) {
	src := `
main = {
	dl = tsi.source.dataloader
	out = tsi.sink.null
	dl@payload:tensor -> out@payload
}

other(symbol:BTCUSD);
`
	p, err := circuit.NewParser(src)
	require.NoError(t, err)
	_, err = p.Parse()
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not match any declared circuit")
}
