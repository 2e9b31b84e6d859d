// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package constfold implements constant folding: nodes whose inputs are all constants are replaced by
// the constants they compute, for operators implementing ops.Evaluator.
package constfold

import (
	"github.com/gp1322719830/ngraph/pkg/core/graph"
	"github.com/gp1322719830/ngraph/pkg/core/ops"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Fold returns a new graph where every foldable node was replaced by constants, and the number of folded nodes.
// Constants left without users are removed. The source graph is not modified.
func Fold(g *graph.Graph) (*graph.Graph, int, error) {
	numFolded := 0
	folded, err := graph.NewRewriter(g, g.Name()).Rewrite(func(r *graph.Rewriter, node *graph.Node) (bool, error) {
		ok, err := foldNode(r, node)
		if ok {
			numFolded++
		}
		return ok, err
	})
	if err != nil {
		return nil, 0, errors.WithMessagef(err, "folding constants of graph %q", g.Name())
	}
	if numFolded == 0 {
		klog.V(1).Infof("constfold: nothing to fold in graph %q", g.Name())
		return folded, 0, nil
	}
	pruned, err := pruneConstants(folded)
	if err != nil {
		return nil, 0, errors.WithMessagef(err, "folding constants of graph %q", g.Name())
	}
	klog.V(1).Infof("constfold: folded %d nodes of graph %q: %d -> %d nodes",
		numFolded, g.Name(), g.NumNodes(), pruned.NumNodes())
	return pruned, numFolded, nil
}

func foldNode(r *graph.Rewriter, node *graph.Node) (bool, error) {
	evaluator, ok := node.Operator().(ops.Evaluator)
	if !ok || node.NumInputs() == 0 {
		return false, nil
	}
	inputs, err := r.MapInputs(node)
	if err != nil {
		return false, err
	}
	constants := make([]*graph.Constant, len(inputs))
	tensors := make([]*graph.Tensor, len(inputs))
	for i, input := range inputs {
		constant, isConstant := input.Node.Operator().(*graph.Constant)
		if !isConstant {
			return false, nil
		}
		constants[i] = constant
		tensors[i] = input.Tensor()
	}
	// The source node may have dynamic outputs, the constant inputs make them static.
	specs, err := node.Operator().Infer(tensors)
	if err != nil {
		return false, err
	}
	values, err := evaluator.Evaluate(constants, specs)
	if err != nil {
		if ops.IsNotFoldable(err) {
			klog.Warningf("constfold: not folding %s: %v", node, err)
			return false, nil
		}
		return false, errors.WithMessagef(err, "evaluating %s", node)
	}
	if len(values) != node.NumOutputs() {
		return false, errors.Errorf("evaluating %s: got %d values for %d outputs", node, len(values), node.NumOutputs())
	}
	for i, value := range values {
		constantNode, err := r.Target().AddNode(value)
		if err != nil {
			return false, err
		}
		r.Set(node.OutputTensor(i), constantNode.Output(0))
	}
	klog.V(2).Infof("constfold: folded %s", node)
	return true, nil
}

// pruneConstants returns a copy of g without the constants that have no users.
func pruneConstants(g *graph.Graph) (*graph.Graph, error) {
	return graph.NewRewriter(g, g.Name()).Rewrite(func(_ *graph.Rewriter, node *graph.Node) (bool, error) {
		if _, isConstant := node.Operator().(*graph.Constant); !isConstant {
			return false, nil
		}
		return len(g.Users(node.OutputTensor(0))) == 0, nil
	})
}
