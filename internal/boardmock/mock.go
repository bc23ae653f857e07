// Package boardmock is a mockgen-shaped mock of the board.Node capability
// set, letting executor tests drive a node without wiring a real
// dataloader, vicreg model, or sink.
package boardmock

import (
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/cuwacunu/tsiemene/board"
	"github.com/cuwacunu/tsiemene/typeregistry"
)

// Node is a mock of board.Node.
type Node struct {
	ctrl     *gomock.Controller
	recorder *NodeMockRecorder
}

// NodeMockRecorder is the recorder for Node.
type NodeMockRecorder struct {
	mock *Node
}

// NewNode returns a new mock Node bound to ctrl.
func NewNode(ctrl *gomock.Controller) *Node {
	mock := &Node{ctrl: ctrl}
	mock.recorder = &NodeMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *Node) EXPECT() *NodeMockRecorder {
	return m.recorder
}

// TypeName mocks base method.
func (m *Node) TypeName() string {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "TypeName")
	ret0, _ := ret[0].(string)
	return ret0
}

// TypeName indicates an expected call of TypeName.
func (mr *NodeMockRecorder) TypeName() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "TypeName", reflect.TypeOf((*Node)(nil).TypeName))
}

// InstanceName mocks base method.
func (m *Node) InstanceName() string {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "InstanceName")
	ret0, _ := ret[0].(string)
	return ret0
}

// InstanceName indicates an expected call of InstanceName.
func (mr *NodeMockRecorder) InstanceName() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "InstanceName", reflect.TypeOf((*Node)(nil).InstanceName))
}

// ID mocks base method.
func (m *Node) ID() string {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ID")
	ret0, _ := ret[0].(string)
	return ret0
}

// ID indicates an expected call of ID.
func (mr *NodeMockRecorder) ID() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ID", reflect.TypeOf((*Node)(nil).ID))
}

// Directives mocks base method.
func (m *Node) Directives() []typeregistry.Directive {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Directives")
	ret0, _ := ret[0].([]typeregistry.Directive)
	return ret0
}

// Directives indicates an expected call of Directives.
func (mr *NodeMockRecorder) Directives() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Directives", reflect.TypeOf((*Node)(nil).Directives))
}

// Step mocks base method.
func (m *Node) Step(in board.Event) ([]board.OutSignal, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Step", in)
	ret0, _ := ret[0].([]board.OutSignal)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Step indicates an expected call of Step.
func (mr *NodeMockRecorder) Step(in any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Step", reflect.TypeOf((*Node)(nil).Step), in)
}

var _ board.Node = (*Node)(nil)
