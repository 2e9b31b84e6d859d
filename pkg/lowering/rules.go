// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package lowering

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/gp1322719830/ngraph/backends"
	"github.com/gp1322719830/ngraph/pkg/core/graph"
	"github.com/gp1322719830/ngraph/pkg/core/ops"
	"github.com/gp1322719830/ngraph/pkg/core/opset"
	"github.com/gp1322719830/ngraph/pkg/dialect"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Lowered is what a Rule produced for a node: either an emitted operation, whose results the converter binds
// positionally to the node outputs, or the marker that the rule bound every node output itself.
type Lowered struct {
	op    *dialect.Operation
	bound bool
}

// Emitted returns a Lowered for op: op.Result(i) will be bound to the node's i-th output.
func Emitted(op *dialect.Operation) Lowered { return Lowered{op: op} }

// AlreadyBound returns a Lowered telling the converter the rule has bound all node outputs with Converter.Values.
func AlreadyBound() Lowered { return Lowered{bound: true} }

// Operation returns the emitted operation, or nil.
func (l Lowered) Operation() *dialect.Operation { return l.op }

// IsAlreadyBound returns whether the rule did its own binding.
func (l Lowered) IsAlreadyBound() bool { return l.bound }

// Rule lowers one node. Operands are available through Converter.OperandValues.
type Rule func(c *Converter, node *graph.Node) (Lowered, error)

// RuleTable maps operator identities to lowering rules.
//
// It is immutable: With and Without return modified copies, so a table can be shared by concurrent conversions.
type RuleTable struct {
	rules map[opset.OpTypeID]Rule
}

// NewRuleTable returns an empty table.
func NewRuleTable() *RuleTable {
	return &RuleTable{rules: make(map[opset.OpTypeID]Rule)}
}

// Lookup returns the rule for the operator identity.
func (t *RuleTable) Lookup(id opset.OpTypeID) (Rule, bool) {
	rule, found := t.rules[id]
	return rule, found
}

// Len returns the number of rules.
func (t *RuleTable) Len() int { return len(t.rules) }

// OpTypes returns the operator identities with a rule, sorted.
func (t *RuleTable) OpTypes() []opset.OpTypeID {
	return slices.Sorted(maps.Keys(t.rules))
}

// With returns a copy of the table where id is lowered by rule.
func (t *RuleTable) With(id opset.OpTypeID, rule Rule) *RuleTable {
	newTable := &RuleTable{rules: maps.Clone(t.rules)}
	newTable.rules[id] = rule
	return newTable
}

// Without returns a copy of the table without a rule for id.
func (t *RuleTable) Without(id opset.OpTypeID) *RuleTable {
	newTable := &RuleTable{rules: maps.Clone(t.rules)}
	delete(newTable.rules, id)
	return newTable
}

var (
	defaultRulesOnce sync.Once
	defaultRules     *RuleTable
)

// DefaultRules returns the process-wide table, built on first use: every operator of the catalog is lowered
// by GenericRule, except those with a specialized rule.
func DefaultRules() *RuleTable {
	defaultRulesOnce.Do(func() {
		table := NewRuleTable()
		for _, id := range opset.Catalog() {
			switch id.Prototype().(type) {
			case *graph.Parameter, *graph.Result:
				// Interface boundary, never lowered.
				continue
			case *graph.Constant:
				table.rules[id] = ConstantRule
			case *ops.StopGradient:
				table.rules[id] = AliasRule
			case *ops.AllReduce:
				table.rules[id] = AllReduceRule
			case *ops.Convert:
				table.rules[id] = ConvertRule
			default:
				table.rules[id] = GenericRule(OpName(id.TypeInfo()))
			}
		}
		klog.V(1).Infof("lowering: %d default rules", table.Len())
		defaultRules = table
	})
	return defaultRules
}

// OpName returns the dialect operation name for an operator, e.g. "ng.reduce_sum" for ReduceSum.
// Versions of the same operator share the name.
func OpName(info graph.TypeInfo) string {
	var sb strings.Builder
	sb.WriteString("ng.")
	runes := []rune(info.Name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				sb.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// GenericRule returns a rule emitting one operation named opName, with the node inputs as operands, one result
// per node output, and the operator attributes (see graph.Attributer).
func GenericRule(opName string) Rule {
	return func(c *Converter, node *graph.Node) (Lowered, error) {
		resultTypes, err := c.ResultTypes(node)
		if err != nil {
			return Lowered{}, err
		}
		op, err := c.Function().Create(opName, c.OperandValues(node), resultTypes, nodeAttributes(node))
		if err != nil {
			return Lowered{}, err
		}
		return Emitted(op), nil
	}
}

func nodeAttributes(node *graph.Node) map[string]any {
	attributer, ok := node.Operator().(graph.Attributer)
	if !ok {
		return nil
	}
	return maps.Clone(attributer.Attributes())
}

// ConstantRule emits "ng.constant" holding the raw constant data in its "value" attribute.
func ConstantRule(c *Converter, node *graph.Node) (Lowered, error) {
	constant := node.Operator().(*graph.Constant)
	resultTypes, err := c.ResultTypes(node)
	if err != nil {
		return Lowered{}, err
	}
	op, err := c.Function().Create("ng.constant", nil, resultTypes, map[string]any{"value": constant.Data()})
	if err != nil {
		return Lowered{}, err
	}
	return Emitted(op), nil
}

// AliasRule lowers single-input operators that are identities at runtime (like StopGradient):
// every output is bound to the value of the input, and no operation is emitted.
func AliasRule(c *Converter, node *graph.Node) (Lowered, error) {
	if node.NumInputs() != 1 {
		return Lowered{}, errors.Errorf("alias lowering of %s requires 1 input, got %d", node, node.NumInputs())
	}
	value := c.Values().Lookup(node.InputTensor(0))
	for _, output := range node.OutputTensors() {
		c.Values().Bind(output, value)
	}
	return AlreadyBound(), nil
}

// ConvertRule emits "ng.convert" with the lowered destination type in its "destination_type" attribute.
func ConvertRule(c *Converter, node *graph.Node) (Lowered, error) {
	convert := node.Operator().(*ops.Convert)
	destination, err := ElementType(convert.DestinationType)
	if err != nil {
		return Lowered{}, err
	}
	resultTypes, err := c.ResultTypes(node)
	if err != nil {
		return Lowered{}, err
	}
	op, err := c.Function().Create("ng.convert", c.OperandValues(node), resultTypes,
		map[string]any{"destination_type": destination.String()})
	if err != nil {
		return Lowered{}, err
	}
	return Emitted(op), nil
}

// allReduceCallSeq numbers the AllReduce operations queued by the process, for debugging.
var allReduceCallSeq atomic.Int64

var reduceOps = map[ops.ReduceType]backends.ReduceOp{
	ops.ReduceTypeSum:  backends.ReduceOpSum,
	ops.ReduceTypeProd: backends.ReduceOpProd,
	ops.ReduceTypeMin:  backends.ReduceOpMin,
	ops.ReduceTypeMax:  backends.ReduceOpMax,
}

// AllReduceRule emits "ng.all_reduce" and, if the conversion has an ExternalFunction, queues a functor
// that performs the reduction through the runtime context's backends.Distributed.
func AllReduceRule(c *Converter, node *graph.Node) (Lowered, error) {
	allReduce := node.Operator().(*ops.AllReduce)
	reduceOp, found := reduceOps[allReduce.ReduceType]
	if !found {
		return Lowered{}, errors.Errorf("AllReduce with unknown reduce type %s", allReduce.ReduceType)
	}
	lowered, err := GenericRule("ng.all_reduce")(c, node)
	if err != nil || c.External() == nil {
		return lowered, err
	}

	operand := c.OperandValues(node)[0]
	result := lowered.Operation().Result(0)
	elementType := node.InputTensor(0).ElementType()
	klog.V(2).Infof("AllReduce Queued[%d]: Function: %s Node: %s Size: %d",
		allReduceCallSeq.Add(1)-1, c.External().Name(), node.Name(), result.Type().Size())
	c.Enqueue(func(ctx *backends.RuntimeContext) error {
		distributed := ctx.Distributed()
		if distributed == nil {
			return errors.Errorf("AllReduce of node %s requires a distributed runtime context", node.Name())
		}
		in, err := ctx.Buffer(operand)
		if err != nil {
			return err
		}
		return distributed.AllReduce(in, ctx.Allocate(result, elementType), reduceOp)
	})
	return lowered, nil
}
