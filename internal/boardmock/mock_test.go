package boardmock_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cuwacunu/tsiemene/board"
	"github.com/cuwacunu/tsiemene/internal/boardmock"
	"github.com/cuwacunu/tsiemene/typeregistry"
)

func TestMockNodeSatisfiesStepContract(t *testing.T) {
	ctrl := gomock.NewController(t)
	n := boardmock.NewNode(ctrl)

	in := board.Event{To: "alias", Directive: "payload"}
	want := []board.OutSignal{{Directive: "payload", Signal: board.Signal{Kind: typeregistry.KindTensor}}}

	n.EXPECT().InstanceName().Return("alias")
	n.EXPECT().Step(in).Return(want, nil)

	require.Equal(t, "alias", n.InstanceName())
	got, err := n.Step(in)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
