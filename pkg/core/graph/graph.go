// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graph defines the computation graph (also called function) of tensor operators that
// is lowered to the dialect (see package lowering) and specialized (see package specialize).
//
// The main elements in the package are:
//
//   - Graph: an arena of Node objects in creation order, with a designated ordered list of
//     Parameter nodes (inputs) and Result nodes (outputs).
//
//   - Node: one application of an Operator to the outputs of earlier nodes. A node is validated
//     (its Operator infers the element type and shape of its outputs) when it is added, and is
//     immutable afterward.
//
//   - Tensor: the descriptor (element type and partial shape) of one output of a node. Its
//     pointer is the identity of the value, used by the lowering pass to bind dialect values.
//
//   - Operator: the capability each operator kind implements: identity, validation/shape
//     inference and cloning. The operator catalog lives in package ops.
//
// Nodes can only refer to nodes created before them, so the creation order is always a valid
// topological order and graphs are acyclic by construction.
//
// # Error Handling
//
// Graph building methods return errors: a node whose inputs are not accepted by its operator
// returns a *NodeValidationError. Package ops offers Must, which panics instead, for code
// building graphs by hand.
package graph

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/gp1322719830/ngraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Graph holds the nodes of a function, its parameters (inputs) and results (outputs).
type Graph struct {
	id   uuid.UUID
	name string

	// nodes in creation order, which is also a topological order.
	nodes []*Node

	parameters []*Node
	results    []*Node
}

// New creates an empty Graph with the given name.
func New(name string) *Graph {
	return &Graph{
		id:   uuid.New(),
		name: name,
	}
}

// ID is a unique identifier of the graph. Clones and specializations get a new ID.
func (g *Graph) ID() uuid.UUID { return g.id }

// Name of the function this Graph defines.
func (g *Graph) Name() string { return g.name }

// NumNodes returns the number of nodes in the graph, including parameters and results.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NodeByID returns the node with the given id, or nil if it doesn't exist.
func (g *Graph) NodeByID(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// OrderedNodes returns the nodes in dependency order: every node comes after the nodes
// producing its inputs. The returned slice must not be modified.
func (g *Graph) OrderedNodes() []*Node { return g.nodes }

// Parameters returns the parameter nodes, in order. The returned slice must not be modified.
func (g *Graph) Parameters() []*Node { return g.parameters }

// NumParameters returns the number of parameters of the function.
func (g *Graph) NumParameters() int { return len(g.parameters) }

// Results returns the result nodes, in order. The returned slice must not be modified.
func (g *Graph) Results() []*Node { return g.results }

// AddNode validates and adds a new node applying op to the given inputs.
//
// The inputs must be outputs of nodes of this graph. If op doesn't accept the inputs it returns
// a *NodeValidationError and the graph is left unchanged.
//
// Parameter and Result operators are also registered as the graph's parameters and results.
func (g *Graph) AddNode(op Operator, inputs ...Output) (*Node, error) {
	if op == nil {
		return nil, errors.Errorf("graph %q: cannot add node with a nil operator", g.name)
	}
	id := NodeID(len(g.nodes))
	ti := op.TypeInfo()
	inputTensors := make([]*Tensor, len(inputs))
	for i, input := range inputs {
		if input.Node == nil {
			return nil, errors.Errorf("graph %q: input #%d of new %s node is nil", g.name, i, ti)
		}
		if input.Node.graph != g {
			return nil, errors.Errorf("graph %q: input #%d (%s) of new %s node belongs to a different graph (%q)",
				g.name, i, input, ti, input.Node.graph.name)
		}
		if input.Index < 0 || input.Index >= len(input.Node.outputs) {
			return nil, errors.Errorf("graph %q: input #%d of new %s node refers to output #%d of %s, which has %d outputs",
				g.name, i, ti, input.Index, input.Node, len(input.Node.outputs))
		}
		inputTensors[i] = input.Node.outputs[input.Index]
	}
	name := fmt.Sprintf("%s_%d", ti.Name, id)
	specs, err := op.Infer(inputTensors)
	if err != nil {
		return nil, &NodeValidationError{Node: name, TypeInfo: ti, Err: err}
	}
	for i, spec := range specs {
		if !spec.ElementType.IsValid() || spec.ElementType == element.Undefined {
			return nil, &NodeValidationError{Node: name, TypeInfo: ti,
				Err: errors.Errorf("inferred invalid element type %s for output #%d", spec.ElementType, i)}
		}
	}

	node := &Node{
		graph:  g,
		id:     id,
		name:   name,
		op:     op,
		inputs: append([]Output(nil), inputs...),
	}
	node.outputs = make([]*Tensor, len(specs))
	for i, spec := range specs {
		node.outputs[i] = &Tensor{
			node:        node,
			index:       i,
			elementType: spec.ElementType,
			shape:       spec.Shape.Clone(),
		}
	}
	g.nodes = append(g.nodes, node)
	switch op.(type) {
	case *Parameter:
		g.parameters = append(g.parameters, node)
	case *Result:
		g.results = append(g.results, node)
	}
	return node, nil
}

// Parameter adds a new parameter (input) to the function.
func (g *Graph) Parameter(elementType element.Type, shape shapes.PartialShape) (*Node, error) {
	return g.AddNode(&Parameter{ElementType: elementType, Shape: shape})
}

// Constant adds a constant node with the given flat values (e.g. []float32) and dimensions.
// If no dimensions are given, a rank-1 shape with the length of flat is used. See ScalarConstant
// for scalars.
func (g *Graph) Constant(flat any, dims ...int) (*Node, error) {
	c, err := ConstantFromFlat(flat, dims...)
	if err != nil {
		return nil, err
	}
	return g.AddNode(c)
}

// ScalarConstant adds a rank-0 constant holding value (e.g. float32(1)).
func (g *Graph) ScalarConstant(value any) (*Node, error) {
	c, err := ScalarConstantFromValue(value)
	if err != nil {
		return nil, err
	}
	return g.AddNode(c)
}

// AddResult marks output as a result (output) of the function.
func (g *Graph) AddResult(output Output) (*Node, error) {
	return g.AddNode(&Result{}, output)
}

// Users returns the nodes that take t as one of their inputs, in dependency order.
func (g *Graph) Users(t *Tensor) []*Node {
	var users []*Node
	for _, node := range g.nodes[t.node.id+1:] {
		for _, input := range node.inputs {
			if input.Tensor() == t {
				users = append(users, node)
				break
			}
		}
	}
	return users
}

// Clone returns an independent copy of the graph, re-validating every node.
func (g *Graph) Clone() (*Graph, error) {
	return NewRewriter(g, g.name).Rewrite(nil)
}

// String returns a multi-line description of the graph, one node per line.
func (g *Graph) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Graph %q: %d nodes, %d parameters, %d results\n",
		g.name, len(g.nodes), len(g.parameters), len(g.results))
	for _, node := range g.nodes {
		fmt.Fprintf(&sb, "\t%s\n", node.Describe())
	}
	return sb.String()
}
