// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/pkg/errors"
)

// RewriteHook is called by Rewriter.Rewrite for every node of the source graph, in order.
//
// If it handles the node it must return true, after having called Rewriter.Set for each of
// the node's outputs that is used by later nodes. Otherwise it returns false and the node is
// cloned with Rewriter.CloneNode.
type RewriteHook func(r *Rewriter, node *Node) (handled bool, err error)

// Rewriter builds a new graph from a source graph, node by node, keeping track of which output
// of the new graph replaces each tensor of the source graph.
//
// The source graph is only read.
type Rewriter struct {
	src, dst *Graph
	mapping  map[*Tensor]Output
}

// NewRewriter creates a Rewriter from src into a new empty graph with the given name.
func NewRewriter(src *Graph, name string) *Rewriter {
	return &Rewriter{
		src:     src,
		dst:     New(name),
		mapping: make(map[*Tensor]Output, src.NumNodes()),
	}
}

// Source graph being rewritten.
func (r *Rewriter) Source() *Graph { return r.src }

// Target graph being built.
func (r *Rewriter) Target() *Graph { return r.dst }

// Set records that the source tensor t is replaced by the target output.
func (r *Rewriter) Set(t *Tensor, output Output) {
	r.mapping[t] = output
}

// Map returns the target output replacing the source tensor t.
func (r *Rewriter) Map(t *Tensor) (Output, bool) {
	output, found := r.mapping[t]
	return output, found
}

// MapInputs returns the target outputs replacing the inputs of the source node.
func (r *Rewriter) MapInputs(node *Node) ([]Output, error) {
	inputs := make([]Output, len(node.inputs))
	for i, input := range node.inputs {
		output, found := r.mapping[input.Tensor()]
		if !found {
			return nil, errors.Errorf("rewriting %s: input #%d (%s) was not rewritten", node, i, input)
		}
		inputs[i] = output
	}
	return inputs, nil
}

// CloneNode adds to the target graph a clone of the source node (see Operator.Clone) applied
// to the mapped inputs, and maps the node's outputs to the clone's outputs.
//
// The clone is re-validated, so it may fail if the mapped inputs differ from the original ones.
func (r *Rewriter) CloneNode(node *Node) (*Node, error) {
	return r.AddNode(node, node.op.Clone())
}

// AddNode adds op applied to the mapped inputs of the source node to the target graph, and maps
// the node's outputs to it. op must have the same number of outputs as node.
func (r *Rewriter) AddNode(node *Node, op Operator) (*Node, error) {
	inputs, err := r.MapInputs(node)
	if err != nil {
		return nil, err
	}
	clone, err := r.dst.AddNode(op, inputs...)
	if err != nil {
		return nil, err
	}
	if clone.NumOutputs() != node.NumOutputs() {
		return nil, errors.Errorf("rewriting %s: replacement %s has %d outputs, wanted %d",
			node, clone, clone.NumOutputs(), node.NumOutputs())
	}
	for i, t := range node.outputs {
		r.mapping[t] = clone.Output(i)
	}
	return clone, nil
}

// Rewrite walks the source graph in order, calling hook (if not nil) for every node and cloning
// the nodes it doesn't handle. It returns the target graph, or the first error, in which case the
// partially built target graph must be discarded.
func (r *Rewriter) Rewrite(hook RewriteHook) (*Graph, error) {
	for _, node := range r.src.nodes {
		if hook != nil {
			handled, err := hook(r, node)
			if err != nil {
				return nil, err
			}
			if handled {
				continue
			}
		}
		if _, err := r.CloneNode(node); err != nil {
			return nil, err
		}
	}
	return r.dst, nil
}
