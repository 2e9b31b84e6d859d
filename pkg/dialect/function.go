// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dialect

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gp1322719830/ngraph/pkg/support/xslices"
	"github.com/pkg/errors"
)

// ReturnOpName is the name of the function terminator.
const ReturnOpName = "ng.return"

// Value is an SSA value of a Function: either a function argument or a result of an Operation.
type Value struct {
	fn    *Function
	id    int
	typ   TensorType
	op    *Operation
	index int
}

// Type of the value.
func (v *Value) Type() TensorType { return v.typ }

// Function owning the value.
func (v *Value) Function() *Function { return v.fn }

// DefiningOp returns the operation that produced the value, or nil for function arguments.
func (v *Value) DefiningOp() *Operation { return v.op }

// IsArgument returns whether the value is a function argument.
func (v *Value) IsArgument() bool { return v.op == nil }

// Index of the value among the function arguments, or among the results of its defining operation.
func (v *Value) Index() int { return v.index }

// Name used when printing, e.g. "%arg0" or "%3".
func (v *Value) Name() string {
	if v.op == nil {
		return fmt.Sprintf("%%arg%d", v.index)
	}
	return fmt.Sprintf("%%%d", v.id)
}

// String implements fmt.Stringer.
func (v *Value) String() string { return v.Name() + ": " + v.typ.String() }

// Operation is one operation of a Function.
type Operation struct {
	fn       *Function
	name     string
	operands []*Value
	results  []*Value
	attrs    map[string]any
}

// Name of the operation, e.g. "ng.add".
func (op *Operation) Name() string { return op.name }

// Operands returns the operation inputs. The returned slice should not be modified.
func (op *Operation) Operands() []*Value { return op.operands }

// NumResults returns the number of results.
func (op *Operation) NumResults() int { return len(op.results) }

// Results returns the operation results. The returned slice should not be modified.
func (op *Operation) Results() []*Value { return op.results }

// Result returns the i-th result.
func (op *Operation) Result(i int) *Value { return op.results[i] }

// Attributes of the operation. The returned map should not be modified.
func (op *Operation) Attributes() map[string]any { return op.attrs }

// Attribute returns the named attribute and whether it is present.
func (op *Operation) Attribute(name string) (value any, found bool) {
	value, found = op.attrs[name]
	return
}

// IsTerminator returns whether op is the function return.
func (op *Operation) IsTerminator() bool { return op.name == ReturnOpName }

// Function is a single-block function of the nGraph dialect under construction.
type Function struct {
	name        string
	arguments   []*Value
	resultTypes []TensorType
	operations  []*Operation
	nextID      int

	// returned is set once Return is called; no further operations can be added.
	returned bool
}

// NewFunction creates a function with the given signature. One argument Value is created per argument type.
func NewFunction(name string, argTypes, resultTypes []TensorType) *Function {
	fn := &Function{
		name:        name,
		resultTypes: append([]TensorType(nil), resultTypes...),
	}
	fn.arguments = make([]*Value, len(argTypes))
	for i, t := range argTypes {
		fn.arguments[i] = &Value{fn: fn, id: -1, typ: t, index: i}
	}
	return fn
}

// Name of the function.
func (fn *Function) Name() string { return fn.name }

// NumArguments returns the number of function arguments.
func (fn *Function) NumArguments() int { return len(fn.arguments) }

// Argument returns the i-th argument.
func (fn *Function) Argument(i int) *Value { return fn.arguments[i] }

// Arguments returns all arguments. The returned slice should not be modified.
func (fn *Function) Arguments() []*Value { return fn.arguments }

// ResultTypes of the function signature.
func (fn *Function) ResultTypes() []TensorType { return fn.resultTypes }

// Operations returns the operations in creation order, including the terminator if present.
func (fn *Function) Operations() []*Operation { return fn.operations }

// IsReturned returns whether Return was called. No operations can be added afterward.
func (fn *Function) IsReturned() bool { return fn.returned }

// Terminator returns the "ng.return" operation, or nil if Return was not called yet.
func (fn *Function) Terminator() *Operation {
	if !fn.returned || len(fn.operations) == 0 {
		return nil
	}
	return xslices.Last(fn.operations)
}

func (fn *Function) newValue(op *Operation, index int, t TensorType) *Value {
	v := &Value{fn: fn, id: fn.nextID, typ: t, op: op, index: index}
	fn.nextID++
	return v
}

func (fn *Function) checkOperands(opName string, operands []*Value) error {
	if fn.returned {
		return errors.Errorf("cannot add operation %s after returning, in function %q", opName, fn.name)
	}
	for i, operand := range operands {
		if operand == nil {
			return errors.Errorf("cannot add operation %s to function %q: operand #%d is nil", opName, fn.name, i)
		}
		if operand.fn != fn {
			return errors.Errorf("cannot add operation %s to function %q, because the operands are not part of the function",
				opName, fn.name)
		}
	}
	return nil
}

// Create appends a new operation named opName, with one result per entry of resultTypes.
// The attrs map is owned by the operation after the call.
func (fn *Function) Create(opName string, operands []*Value, resultTypes []TensorType, attrs map[string]any) (*Operation, error) {
	if opName == ReturnOpName {
		return nil, errors.Errorf("use Function.Return to add %s to function %q", ReturnOpName, fn.name)
	}
	if err := fn.checkOperands(opName, operands); err != nil {
		return nil, err
	}
	op := &Operation{
		fn:       fn,
		name:     opName,
		operands: append([]*Value(nil), operands...),
		attrs:    attrs,
	}
	op.results = make([]*Value, len(resultTypes))
	for i, t := range resultTypes {
		op.results[i] = fn.newValue(op, i, t)
	}
	fn.operations = append(fn.operations, op)
	return op, nil
}

// Return adds the terminator, whose operand types must match the function result types.
func (fn *Function) Return(values ...*Value) (*Operation, error) {
	if err := fn.checkOperands(ReturnOpName, values); err != nil {
		return nil, err
	}
	if len(values) != len(fn.resultTypes) {
		return nil, errors.Errorf("function %q returns %d values, got %d", fn.name, len(fn.resultTypes), len(values))
	}
	for i, v := range values {
		if !v.typ.Equal(fn.resultTypes[i]) {
			return nil, errors.Errorf("function %q result #%d has type %s, but returned value %s has type %s",
				fn.name, i, fn.resultTypes[i], v.Name(), v.typ)
		}
	}
	op := &Operation{fn: fn, name: ReturnOpName, operands: append([]*Value(nil), values...)}
	fn.operations = append(fn.operations, op)
	fn.returned = true
	return op, nil
}

// Verify checks that every operand is defined before use and that the function ends with its terminator.
func (fn *Function) Verify() error {
	defined := make(map[*Value]bool, len(fn.arguments))
	for _, arg := range fn.arguments {
		defined[arg] = true
	}
	for i, op := range fn.operations {
		for j, operand := range op.operands {
			if !defined[operand] {
				return errors.Errorf("function %q: operand #%d of operation #%d (%s) is used before being defined",
					fn.name, j, i, op.name)
			}
		}
		if op.IsTerminator() && i != len(fn.operations)-1 {
			return errors.Errorf("function %q: %s must be the last operation", fn.name, ReturnOpName)
		}
		for _, result := range op.results {
			defined[result] = true
		}
	}
	if fn.Terminator() == nil {
		return errors.Errorf("function %q has no %s", fn.name, ReturnOpName)
	}
	return nil
}

// String renders the function in a textual form, one operation per line.
func (fn *Function) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "func @%s(", fn.name)
	for i, arg := range fn.arguments {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(arg.String())
	}
	sb.WriteString(") -> (")
	writeTypes(&sb, fn.resultTypes)
	sb.WriteString(") {\n")
	for _, op := range fn.operations {
		sb.WriteString("  ")
		sb.WriteString(op.String())
		sb.WriteByte('\n')
	}
	sb.WriteString("}\n")
	return sb.String()
}

// String renders one operation, e.g. `%2 = "ng.add"(%arg0, %arg1) : (...) -> !ng.tensor<2xf32>`.
func (op *Operation) String() string {
	var sb strings.Builder
	for i, r := range op.results {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(r.Name())
	}
	if len(op.results) > 0 {
		sb.WriteString(" = ")
	}
	fmt.Fprintf(&sb, "%q(", op.name)
	for i, operand := range op.operands {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(operand.Name())
	}
	sb.WriteByte(')')
	if len(op.attrs) > 0 {
		sb.WriteString(" {")
		for i, key := range xslices.SortedKeys(op.attrs) {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s = %s", key, formatAttribute(op.attrs[key]))
		}
		sb.WriteByte('}')
	}
	sb.WriteString(" : (")
	writeTypes(&sb, xslices.Map(op.operands, (*Value).Type))
	sb.WriteString(") -> ")
	resultTypes := xslices.Map(op.results, (*Value).Type)
	if len(resultTypes) == 1 {
		sb.WriteString(resultTypes[0].String())
	} else {
		sb.WriteByte('(')
		writeTypes(&sb, resultTypes)
		sb.WriteByte(')')
	}
	return sb.String()
}

// maxInlineBytes is the largest byte attribute printed in full.
const maxInlineBytes = 16

func formatAttribute(value any) string {
	switch v := value.(type) {
	case []byte:
		if len(v) <= maxInlineBytes {
			return fmt.Sprintf("dense<0x%X>", v)
		}
		return fmt.Sprintf("dense<%s>", humanize.IBytes(uint64(len(v))))
	case string:
		return fmt.Sprintf("%q", v)
	case fmt.Stringer:
		return fmt.Sprintf("%q", v.String())
	}
	return fmt.Sprintf("%v", value)
}

func writeTypes(sb *strings.Builder, types []TensorType) {
	for i, t := range types {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(t.String())
	}
}
