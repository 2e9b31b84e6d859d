// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"strings"

	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/gp1322719830/ngraph/pkg/core/shapes"
	"github.com/gp1322719830/ngraph/pkg/support/xslices"
)

// TypeInfo identifies an operator kind: its name and the version of the operator set that
// introduced it. Operators with the same name and different versions are different kinds.
type TypeInfo struct {
	Name    string
	Version int
}

// String returns "<Name>_v<Version>".
func (ti TypeInfo) String() string {
	return fmt.Sprintf("%s_v%d", ti.Name, ti.Version)
}

// TensorSpec is the element type and shape inferred for one output of a node.
type TensorSpec struct {
	ElementType element.Type
	Shape       shapes.PartialShape
}

// Operator is the capability implemented by every operator kind.
//
// Implementations hold the operator attributes (strides, axes, etc.), which are owned by the
// node and must not be changed after the node is added to a graph.
type Operator interface {
	// TypeInfo returns the identity of the operator kind.
	TypeInfo() TypeInfo

	// Infer validates the inputs and returns the element type and shape of each output.
	Infer(inputs []*Tensor) ([]TensorSpec, error)

	// Clone returns a copy of the operator with the same attributes, to be used in a new node.
	Clone() Operator
}

// Attributer is optionally implemented by operators with attributes relevant to lowering.
type Attributer interface {
	Attributes() map[string]any
}

// NodeID is the index of a node in its Graph, in creation order.
type NodeID int

// Node is one application of an Operator within a Graph.
type Node struct {
	graph   *Graph
	id      NodeID
	name    string
	op      Operator
	inputs  []Output
	outputs []*Tensor
}

// Graph that holds this node.
func (n *Node) Graph() *Graph { return n.graph }

// ID of the node within its Graph.
func (n *Node) ID() NodeID { return n.id }

// Name is a unique name within the graph, "<operator name>_<id>".
func (n *Node) Name() string { return n.name }

// Operator applied by this node.
func (n *Node) Operator() Operator { return n.op }

// TypeInfo is a shortcut to n.Operator().TypeInfo().
func (n *Node) TypeInfo() TypeInfo { return n.op.TypeInfo() }

// NumInputs returns the number of input edges.
func (n *Node) NumInputs() int { return len(n.inputs) }

// Input returns the i-th input edge.
func (n *Node) Input(i int) Output { return n.inputs[i] }

// Inputs returns a copy of the input edges.
func (n *Node) Inputs() []Output { return append([]Output(nil), n.inputs...) }

// InputTensor returns the tensor consumed by the i-th input.
func (n *Node) InputTensor(i int) *Tensor { return n.inputs[i].Tensor() }

// NumOutputs returns the number of output tensors.
func (n *Node) NumOutputs() int { return len(n.outputs) }

// Output returns the i-th output edge of the node, to be used as input of other nodes.
func (n *Node) Output(i int) Output { return Output{Node: n, Index: i} }

// OutputTensor returns the descriptor of the i-th output.
func (n *Node) OutputTensor(i int) *Tensor { return n.outputs[i] }

// OutputTensors returns the descriptors of all outputs. The slice must not be modified.
func (n *Node) OutputTensors() []*Tensor { return n.outputs }

// String implements fmt.Stringer.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	return n.name
}

// Describe returns a one-line description with the operator, inputs and outputs of the node.
func (n *Node) Describe() string {
	inputs := xslices.Map(n.inputs, Output.String)
	outputs := xslices.Map(n.outputs, (*Tensor).Type)
	desc := fmt.Sprintf("%s = %s(%s) -> (%s)", n.name, n.op.TypeInfo(), strings.Join(inputs, ", "), strings.Join(outputs, ", "))
	if s, ok := n.op.(fmt.Stringer); ok {
		desc += " " + s.String()
	}
	return desc
}

// Output refers to one output of a node: an edge of the graph.
type Output struct {
	Node  *Node
	Index int
}

// Tensor returns the descriptor of the referenced output.
func (o Output) Tensor() *Tensor { return o.Node.outputs[o.Index] }

// ElementType of the referenced output.
func (o Output) ElementType() element.Type { return o.Tensor().elementType }

// Shape of the referenced output.
func (o Output) Shape() shapes.PartialShape { return o.Tensor().shape }

// String implements fmt.Stringer, e.g. "Add_3:0".
func (o Output) String() string {
	return fmt.Sprintf("%s:%d", o.Node, o.Index)
}

// Tensor describes one output of a node: its element type and partial shape.
//
// Its pointer identifies the value: there is exactly one *Tensor per node output.
type Tensor struct {
	node        *Node
	index       int
	elementType element.Type
	shape       shapes.PartialShape
}

// Node producing the tensor.
func (t *Tensor) Node() *Node { return t.node }

// Index of the tensor among the node outputs.
func (t *Tensor) Index() int { return t.index }

// Output returns the edge referring to this tensor.
func (t *Tensor) Output() Output { return Output{Node: t.node, Index: t.index} }

// ElementType of the tensor, possibly element.Dynamic.
func (t *Tensor) ElementType() element.Type { return t.elementType }

// Shape of the tensor, possibly partially unknown.
func (t *Tensor) Shape() shapes.PartialShape { return t.shape }

// Type returns element type and shape, e.g. "f32{2,?}".
func (t *Tensor) Type() string {
	return t.elementType.String() + t.shape.String()
}

// String implements fmt.Stringer, e.g. "Add_3:0 f32{2,?}".
func (t *Tensor) String() string {
	return fmt.Sprintf("%s:%d %s", t.node, t.index, t.Type())
}
