// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package lowering converts a graph.Graph with static shapes into a dialect.Function.
//
// Each node is dispatched, by its operator identity (see package opset), to a Rule of a RuleTable.
// Conversion is all-or-nothing: on error no function is added to the dialect.Context and no functor is
// queued on the ExternalFunction.
//
// Errors caused by the input (unsupported operators or types) are returned. Violations of the ValueMap
// single-definition contract are bugs, and they panic.
package lowering

import (
	"github.com/gomlx/exceptions"
	"github.com/gp1322719830/ngraph/backends"
	"github.com/gp1322719830/ngraph/pkg/core/graph"
	"github.com/gp1322719830/ngraph/pkg/core/opset"
	"github.com/gp1322719830/ngraph/pkg/dialect"
	"github.com/gp1322719830/ngraph/pkg/support/xslices"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultFunctionName is the name of the lowered function, if not set with WithFunctionName.
const DefaultFunctionName = "main"

type options struct {
	rules        *RuleTable
	functionName string
	external     *backends.ExternalFunction
}

// Option configures Convert.
type Option func(o *options)

// WithRules sets the rule table. The default is DefaultRules().
func WithRules(rules *RuleTable) Option {
	return func(o *options) { o.rules = rules }
}

// WithFunctionName sets the name of the lowered function. The default is DefaultFunctionName.
func WithFunctionName(name string) Option {
	return func(o *options) { o.functionName = name }
}

// WithExternalFunction sets where rules queue their runtime functors (e.g. AllReduce).
// Without it, rules emit only dialect operations.
func WithExternalFunction(external *backends.ExternalFunction) Option {
	return func(o *options) { o.external = external }
}

// Converter holds the state of one conversion. It is passed to the rules, and it must not be used after
// the rule returns.
type Converter struct {
	graph    *graph.Graph
	fn       *dialect.Function
	values   *ValueMap
	rules    *RuleTable
	external *backends.ExternalFunction
	pending  []backends.Functor
}

// Graph being converted.
func (c *Converter) Graph() *graph.Graph { return c.graph }

// Function being built.
func (c *Converter) Function() *dialect.Function { return c.fn }

// Values returns the tensor to value bindings of the conversion.
func (c *Converter) Values() *ValueMap { return c.values }

// External returns the ExternalFunction of the conversion, or nil.
func (c *Converter) External() *backends.ExternalFunction { return c.external }

// Enqueue stages a functor for the ExternalFunction. Functors are queued only if the conversion succeeds.
func (c *Converter) Enqueue(functor backends.Functor) {
	c.pending = append(c.pending, functor)
}

// OperandValues returns the values bound to the node inputs, in order.
// It panics if an input is not bound.
func (c *Converter) OperandValues(node *graph.Node) []*dialect.Value {
	values := make([]*dialect.Value, node.NumInputs())
	for i := range values {
		values[i] = c.values.Lookup(node.InputTensor(i))
	}
	return values
}

// ResultTypes returns the dialect types of the node outputs, in order.
func (c *Converter) ResultTypes(node *graph.Node) ([]dialect.TensorType, error) {
	types := make([]dialect.TensorType, node.NumOutputs())
	for i, output := range node.OutputTensors() {
		var err error
		types[i], err = c.TensorType(output)
		if err != nil {
			return nil, err
		}
	}
	return types, nil
}

// TensorType returns the dialect type of a tensor, see TensorType.
func (c *Converter) TensorType(t *graph.Tensor) (dialect.TensorType, error) {
	return TensorType(t)
}

// Convert lowers g into a new function added to ctx, and returns it.
func Convert(g *graph.Graph, ctx *dialect.Context, opts ...Option) (*dialect.Function, error) {
	o := options{functionName: DefaultFunctionName}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rules == nil {
		o.rules = DefaultRules()
	}
	if _, found := ctx.Lookup(o.functionName); found {
		return nil, errors.Errorf("cannot lower graph %q: function %q already exists in context", g.Name(), o.functionName)
	}

	klog.V(1).Infof("lowering graph %q (%d nodes) to function %q", g.Name(), g.NumNodes(), o.functionName)
	c := &Converter{
		graph:    g,
		values:   NewValueMap(),
		rules:    o.rules,
		external: o.external,
	}
	if err := c.convert(o.functionName); err != nil {
		return nil, errors.WithMessagef(err, "lowering graph %q", g.Name())
	}
	if err := ctx.Add(c.fn); err != nil {
		return nil, err
	}
	if c.external != nil {
		c.external.Enqueue(c.pending...)
	}
	klog.V(1).Infof("lowered graph %q: %d operations, %d functors queued",
		g.Name(), len(c.fn.Operations()), len(c.pending))
	return c.fn, nil
}

func (c *Converter) convert(functionName string) error {
	// Signature.
	parameters, results := c.graph.Parameters(), c.graph.Results()
	argTypes, i, err := xslices.MapErr(parameters, func(node *graph.Node) (dialect.TensorType, error) {
		return TensorType(node.OutputTensor(0))
	})
	if err != nil {
		return errors.WithMessagef(err, "parameter #%d", i)
	}
	resultTypes, i, err := xslices.MapErr(results, func(node *graph.Node) (dialect.TensorType, error) {
		return TensorType(node.InputTensor(0))
	})
	if err != nil {
		return errors.WithMessagef(err, "result #%d", i)
	}
	c.fn = dialect.NewFunction(functionName, argTypes, resultTypes)
	for i, parameter := range parameters {
		c.values.Bind(parameter.OutputTensor(0), c.fn.Argument(i))
	}

	// Body.
	for _, node := range c.graph.OrderedNodes() {
		if err := c.lowerNode(node); err != nil {
			return err
		}
	}

	// Terminator.
	returned := xslices.Map(results, func(node *graph.Node) *dialect.Value {
		return c.values.Lookup(node.InputTensor(0))
	})
	if _, err := c.fn.Return(returned...); err != nil {
		return err
	}
	return c.fn.Verify()
}

func (c *Converter) lowerNode(node *graph.Node) error {
	id := opset.Identify(node)
	if klog.V(2).Enabled() {
		klog.Infof("lowering %s: %s", id, node.Describe())
	}
	switch node.Operator().(type) {
	case *graph.Parameter, *graph.Result:
		return nil
	}
	rule, found := c.rules.Lookup(id)
	if !found {
		info := node.TypeInfo()
		return errors.Wrapf(ErrUnsupportedOp, "lowering doesn't currently implement the %q operation (%s) of node %s",
			info.Name, info, node.Name())
	}
	lowered, err := rule(c, node)
	if err != nil {
		return errors.WithMessagef(err, "lowering node %s", node.Name())
	}
	if lowered.IsAlreadyBound() {
		for i, output := range node.OutputTensors() {
			if !c.values.IsBound(output) {
				exceptions.Panicf("lowering rule for %s returned AlreadyBound, but output #%d of node %s is not bound",
					id, i, node.Name())
			}
		}
		return nil
	}
	op := lowered.Operation()
	if op == nil {
		exceptions.Panicf("lowering rule for %s returned neither an operation nor AlreadyBound, for node %s", id, node.Name())
	}
	if op.NumResults() != node.NumOutputs() {
		exceptions.Panicf("lowering rule for %s emitted %s with %d results, but node %s has %d outputs",
			id, op.Name(), op.NumResults(), node.Name(), node.NumOutputs())
	}
	for i, result := range op.Results() {
		c.values.Bind(node.OutputTensor(i), result)
		klog.V(2).Infof("  bound %s -> %s", node.OutputTensor(i), result.Name())
	}
	return nil
}
