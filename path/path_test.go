package path

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuwacunu/tsiemene/internal/logx"
	"github.com/cuwacunu/tsiemene/runtimectx"
)

func newRC() *runtimectx.RuntimeContext {
	return runtimectx.New(logx.NewNoOp())
}

func TestDecodeDefaultHashimyeiResolution(t *testing.T) {
	rc := newRC()
	d1 := Decode(rc, "tsi.wikimyei.representation.vicreg@payload:tensor")
	require.True(t, d1.OK, "%v", d1.Err)
	require.False(t, d1.HasFacet)
	require.Len(t, d1.Segments, 5)
	mnemonic := d1.Segments[4]
	require.NotEqual(t, "default", mnemonic)
	require.Equal(t, "tsi.wikimyei.representation.vicreg."+mnemonic+"@payload:tensor", d1.Canonical)

	d2 := Decode(rc, "tsi.wikimyei.representation.vicreg@payload:tensor")
	require.True(t, d2.OK)
	require.Equal(t, mnemonic, d2.Segments[4], "re-decoding must return the same mnemonic")
}

func TestDecodeInvalidKind(t *testing.T) {
	rc := newRC()
	d := Decode(rc, "tsi.wikimyei.representation.vicreg.default@payload:bytes")
	require.False(t, d.OK)
	require.ErrorContains(t, d.Err, "invalid kind")
}

func TestDecodeRejectsTsiIinuji(t *testing.T) {
	rc := newRC()
	d := Decode(rc, "tsi.iinuji.panel")
	require.False(t, d.OK)
}

func TestDecodeRequiresTwoSegments(t *testing.T) {
	rc := newRC()
	d := Decode(rc, "tsi")
	require.False(t, d.OK)
}

func TestDecodeFacetRejectedOutsideTrainable(t *testing.T) {
	rc := newRC()
	d := Decode(rc, "tsi.source.dataloader.jkimyei")
	require.False(t, d.OK)
}

func TestDecodeFacetAllowedOnTrainable(t *testing.T) {
	rc := newRC()
	d := Decode(rc, "tsi.wikimyei.representation.vicreg.default.jkimyei")
	require.True(t, d.OK, "%v", d.Err)
	require.True(t, d.HasFacet)
}

func TestDecodeCallArgsAndEndpoint(t *testing.T) {
	rc := newRC()
	d := Decode(rc, "tsi.source.dataloader(symbol=BTCUSDT,warm)@payload:tensor")
	require.True(t, d.OK, "%v", d.Err)
	require.Len(t, d.Args, 2)
	require.Equal(t, "symbol", d.Args[0].Key)
	require.Equal(t, "BTCUSDT", d.Args[0].Value)
	require.Equal(t, "warm", d.Args[1].Key)
	require.False(t, d.Args[1].HasValue)
	require.Equal(t, DirectivePayload, d.Directive)
	require.Equal(t, KindTensor, d.Kind)
}

func TestDecodeUnbalancedCallIsError(t *testing.T) {
	rc := newRC()
	d := Decode(rc, "tsi.source.dataloader(symbol=BTCUSDT")
	require.False(t, d.OK)
}

func TestHashNamesDifferAcrossDistinctPaths(t *testing.T) {
	rc := newRC()
	d1 := Decode(rc, "tsi.source.dataloader@payload:tensor")
	d2 := Decode(rc, "tsi.source.other@payload:tensor")
	require.True(t, d1.OK)
	require.True(t, d2.OK)
	require.NotEqual(t, d1.IdentityHashName, d2.IdentityHashName)
}

func TestValidateAtomRejectsLeadingDigit(t *testing.T) {
	rc := newRC()
	ok, err := Validate(rc, "tsi.9bad")
	require.False(t, ok)
	require.Error(t, err)
}
