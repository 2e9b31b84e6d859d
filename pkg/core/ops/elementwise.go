// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"github.com/gp1322719830/ngraph/pkg/core/element"
	"github.com/gp1322719830/ngraph/pkg/core/graph"
	"github.com/gp1322719830/ngraph/pkg/core/shapes"
	"github.com/gp1322719830/ngraph/pkg/support/sets"
	"github.com/pkg/errors"
)

// AutoBroadcast selects how binary elementwise operators handle operands of different shapes.
type AutoBroadcast int

const (
	// AutoBroadcastDefault uses the operator version default: None for v0 operators, Numpy for v1.
	AutoBroadcastDefault AutoBroadcast = iota

	// AutoBroadcastNone requires both operands to have compatible shapes.
	AutoBroadcastNone

	// AutoBroadcastNumpy aligns the axes to the right and stretches dimensions of 1.
	AutoBroadcastNumpy
)

// String implements fmt.Stringer.
func (b AutoBroadcast) String() string {
	switch b {
	case AutoBroadcastDefault:
		return "default"
	case AutoBroadcastNone:
		return "none"
	case AutoBroadcastNumpy:
		return "numpy"
	}
	return "invalid"
}

// resolve returns the effective broadcast mode for an operator of the given version.
func (b AutoBroadcast) resolve(version int) AutoBroadcast {
	if b != AutoBroadcastDefault {
		return b
	}
	if version == 0 {
		return AutoBroadcastNone
	}
	return AutoBroadcastNumpy
}

// Kind enumerates the elementwise operations.
type Kind int

const (
	KindInvalid Kind = iota

	// Unary.
	KindAbs
	KindAcos
	KindAsin
	KindAtan
	KindCeiling
	KindCos
	KindCosh
	KindErf
	KindExp
	KindFloor
	KindLog
	KindNegative
	KindRelu
	KindSigmoid
	KindSign
	KindSin
	KindSinh
	KindSqrt
	KindTan
	KindTanh
	KindNot
	KindLogicalNot

	// Binary arithmetic.
	KindAdd
	KindSubtract
	KindMultiply
	KindDivide
	KindMaximum
	KindMinimum
	KindPower
	KindSquaredDifference
	KindAtan2

	// Comparisons.
	KindEqual
	KindNotEqual
	KindGreater
	KindGreaterEqual
	KindLess
	KindLessEqual

	// Logical.
	KindAnd
	KindOr
	KindXor
)

var (
	// UnaryKinds take one operand and preserve its shape.
	UnaryKinds = sets.MakeWith(
		KindAbs, KindAcos, KindAsin, KindAtan, KindCeiling, KindCos, KindCosh, KindErf, KindExp,
		KindFloor, KindLog, KindNegative, KindRelu, KindSigmoid, KindSign, KindSin, KindSinh,
		KindSqrt, KindTan, KindTanh, KindNot, KindLogicalNot)

	// ArithmeticKinds take numeric operands and produce values of the same element type.
	ArithmeticKinds = sets.MakeWith(
		KindAdd, KindSubtract, KindMultiply, KindDivide, KindMaximum, KindMinimum, KindPower,
		KindSquaredDifference, KindAtan2)

	// ComparisonKinds take two operands of the same element type and produce booleans.
	ComparisonKinds = sets.MakeWith(
		KindEqual, KindNotEqual, KindGreater, KindGreaterEqual, KindLess, KindLessEqual)

	// LogicalKinds take and produce booleans.
	LogicalKinds = sets.MakeWith(KindNot, KindLogicalNot, KindAnd, KindOr, KindXor)

	// FloatKinds require floating point operands.
	FloatKinds = sets.MakeWith(KindAtan2, KindErf)
)

// Elementwise is implemented by all elementwise operators, and reports which operation they compute.
type Elementwise interface {
	graph.Operator
	Kind() Kind
}

// kindTag is implemented by the marker types that make each elementwise operator a distinct Go type.
type kindTag interface {
	typeInfo() graph.TypeInfo
	kind() Kind
}

// Unary is an elementwise operator with one operand. The concrete operators (Abs, Exp, ...) are
// instances of it.
type Unary[T kindTag] struct{}

// TypeInfo implements graph.Operator.
func (op *Unary[T]) TypeInfo() graph.TypeInfo {
	var tag T
	return tag.typeInfo()
}

// Kind implements Elementwise.
func (op *Unary[T]) Kind() Kind {
	var tag T
	return tag.kind()
}

// Clone implements graph.Operator.
func (op *Unary[T]) Clone() graph.Operator { return &Unary[T]{} }

// Infer implements graph.Operator.
func (op *Unary[T]) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	if err := checkArity(inputs, 1, 1); err != nil {
		return nil, err
	}
	operand := inputs[0]
	if err := checkElementType(op.Kind(), operand.ElementType()); err != nil {
		return nil, err
	}
	return single(operand.ElementType(), operand.Shape()), nil
}

// Binary is an elementwise operator with two operands, with optional broadcasting. The concrete
// operators (Add, Less, LogicalAnd, ...) are instances of it.
type Binary[T kindTag] struct {
	AutoBroadcast AutoBroadcast
}

// TypeInfo implements graph.Operator.
func (op *Binary[T]) TypeInfo() graph.TypeInfo {
	var tag T
	return tag.typeInfo()
}

// Kind implements Elementwise.
func (op *Binary[T]) Kind() Kind {
	var tag T
	return tag.kind()
}

// Broadcast returns the effective broadcast mode, resolving AutoBroadcastDefault.
func (op *Binary[T]) Broadcast() AutoBroadcast {
	return op.AutoBroadcast.resolve(op.TypeInfo().Version)
}

// Clone implements graph.Operator.
func (op *Binary[T]) Clone() graph.Operator { return &Binary[T]{AutoBroadcast: op.AutoBroadcast} }

// Attributes implements graph.Attributer.
func (op *Binary[T]) Attributes() map[string]any {
	return map[string]any{"auto_broadcast": op.Broadcast().String()}
}

// Infer implements graph.Operator.
func (op *Binary[T]) Infer(inputs []*graph.Tensor) ([]graph.TensorSpec, error) {
	if err := checkArity(inputs, 2, 2); err != nil {
		return nil, err
	}
	kind := op.Kind()
	lhs, rhs := inputs[0], inputs[1]
	elementType, ok := lhs.ElementType().Merge(rhs.ElementType())
	if !ok {
		return nil, errors.Errorf("arguments do not have the same element type (lhs: %s, rhs: %s)",
			lhs.ElementType(), rhs.ElementType())
	}
	if err := checkElementType(kind, elementType); err != nil {
		return nil, err
	}
	shape, err := broadcastShapes(op.Broadcast(), lhs.Shape(), rhs.Shape())
	if err != nil {
		return nil, err
	}
	if ComparisonKinds.Has(kind) {
		elementType = element.Boolean
	}
	return single(elementType, shape), nil
}

// checkElementType validates the element type of the operands of an elementwise operation.
func checkElementType(kind Kind, elementType element.Type) error {
	if elementType.IsDynamic() {
		return nil
	}
	switch {
	case LogicalKinds.Has(kind):
		if elementType != element.Boolean {
			return errors.Errorf("logical operation requires boolean operands, got %s", elementType)
		}
	case ComparisonKinds.Has(kind):
		if !elementType.IsStatic() {
			return errors.Errorf("invalid element type %s", elementType)
		}
	case FloatKinds.Has(kind):
		if !elementType.IsFloat() {
			return errors.Errorf("operation requires floating point operands, got %s", elementType)
		}
	default:
		if elementType == element.Boolean || elementType == element.U1 || !elementType.IsStatic() {
			return errors.Errorf("arithmetic operation requires numeric operands, got %s", elementType)
		}
	}
	return nil
}

// broadcastShapes returns the output shape of a binary elementwise operation.
func broadcastShapes(mode AutoBroadcast, lhs, rhs shapes.PartialShape) (shapes.PartialShape, error) {
	switch mode {
	case AutoBroadcastNone:
		merged, ok := shapes.Merge(lhs, rhs)
		if !ok {
			return shapes.PartialShape{}, errors.Errorf("argument shapes are inconsistent (lhs: %s, rhs: %s)", lhs, rhs)
		}
		return merged, nil
	case AutoBroadcastNumpy:
		merged, ok := shapes.BroadcastMerge(lhs, rhs)
		if !ok {
			return shapes.PartialShape{}, errors.Errorf("argument shapes cannot be broadcast (lhs: %s, rhs: %s)", lhs, rhs)
		}
		return merged, nil
	}
	return shapes.PartialShape{}, errors.Errorf("unsupported broadcast mode %s", mode)
}

type (
	absTag        struct{}
	acosTag       struct{}
	asinTag       struct{}
	atanTag       struct{}
	ceilingTag    struct{}
	cosTag        struct{}
	coshTag       struct{}
	erfTag        struct{}
	expTag        struct{}
	floorTag      struct{}
	logTag        struct{}
	negativeTag   struct{}
	reluTag       struct{}
	sigmoidTag    struct{}
	signTag       struct{}
	sinTag        struct{}
	sinhTag       struct{}
	sqrtTag       struct{}
	tanTag        struct{}
	tanhTag       struct{}
	notTag        struct{}
	logicalNotTag struct{}

	addTag               struct{}
	addV1Tag             struct{}
	subtractTag          struct{}
	subtractV1Tag        struct{}
	multiplyTag          struct{}
	multiplyV1Tag        struct{}
	divideTag            struct{}
	divideV1Tag          struct{}
	maximumTag           struct{}
	maximumV1Tag         struct{}
	minimumTag           struct{}
	minimumV1Tag         struct{}
	powerTag             struct{}
	powerV1Tag           struct{}
	squaredDifferenceTag struct{}
	atan2Tag             struct{}

	equalTag          struct{}
	equalV1Tag        struct{}
	notEqualTag       struct{}
	notEqualV1Tag     struct{}
	greaterTag        struct{}
	greaterV1Tag      struct{}
	greaterEqTag      struct{}
	greaterEqualV1Tag struct{}
	lessTag           struct{}
	lessV1Tag         struct{}
	lessEqTag         struct{}
	lessEqualV1Tag    struct{}

	andTag        struct{}
	orTag         struct{}
	xorTag        struct{}
	logicalAndTag struct{}
	logicalOrTag  struct{}
	logicalXorTag struct{}
)

func v0(name string) graph.TypeInfo { return graph.TypeInfo{Name: name, Version: 0} }
func v1(name string) graph.TypeInfo { return graph.TypeInfo{Name: name, Version: 1} }

func (absTag) typeInfo() graph.TypeInfo        { return v0("Abs") }
func (acosTag) typeInfo() graph.TypeInfo       { return v0("Acos") }
func (asinTag) typeInfo() graph.TypeInfo       { return v0("Asin") }
func (atanTag) typeInfo() graph.TypeInfo       { return v0("Atan") }
func (ceilingTag) typeInfo() graph.TypeInfo    { return v0("Ceiling") }
func (cosTag) typeInfo() graph.TypeInfo        { return v0("Cos") }
func (coshTag) typeInfo() graph.TypeInfo       { return v0("Cosh") }
func (erfTag) typeInfo() graph.TypeInfo        { return v0("Erf") }
func (expTag) typeInfo() graph.TypeInfo        { return v0("Exp") }
func (floorTag) typeInfo() graph.TypeInfo      { return v0("Floor") }
func (logTag) typeInfo() graph.TypeInfo        { return v0("Log") }
func (negativeTag) typeInfo() graph.TypeInfo   { return v0("Negative") }
func (reluTag) typeInfo() graph.TypeInfo       { return v0("Relu") }
func (sigmoidTag) typeInfo() graph.TypeInfo    { return v0("Sigmoid") }
func (signTag) typeInfo() graph.TypeInfo       { return v0("Sign") }
func (sinTag) typeInfo() graph.TypeInfo        { return v0("Sin") }
func (sinhTag) typeInfo() graph.TypeInfo       { return v0("Sinh") }
func (sqrtTag) typeInfo() graph.TypeInfo       { return v0("Sqrt") }
func (tanTag) typeInfo() graph.TypeInfo        { return v0("Tan") }
func (tanhTag) typeInfo() graph.TypeInfo       { return v0("Tanh") }
func (notTag) typeInfo() graph.TypeInfo        { return v0("Not") }
func (logicalNotTag) typeInfo() graph.TypeInfo { return v1("LogicalNot") }

func (absTag) kind() Kind        { return KindAbs }
func (acosTag) kind() Kind       { return KindAcos }
func (asinTag) kind() Kind       { return KindAsin }
func (atanTag) kind() Kind       { return KindAtan }
func (ceilingTag) kind() Kind    { return KindCeiling }
func (cosTag) kind() Kind        { return KindCos }
func (coshTag) kind() Kind       { return KindCosh }
func (erfTag) kind() Kind        { return KindErf }
func (expTag) kind() Kind        { return KindExp }
func (floorTag) kind() Kind      { return KindFloor }
func (logTag) kind() Kind        { return KindLog }
func (negativeTag) kind() Kind   { return KindNegative }
func (reluTag) kind() Kind       { return KindRelu }
func (sigmoidTag) kind() Kind    { return KindSigmoid }
func (signTag) kind() Kind       { return KindSign }
func (sinTag) kind() Kind        { return KindSin }
func (sinhTag) kind() Kind       { return KindSinh }
func (sqrtTag) kind() Kind       { return KindSqrt }
func (tanTag) kind() Kind        { return KindTan }
func (tanhTag) kind() Kind       { return KindTanh }
func (notTag) kind() Kind        { return KindNot }
func (logicalNotTag) kind() Kind { return KindLogicalNot }

func (addTag) typeInfo() graph.TypeInfo               { return v0("Add") }
func (addV1Tag) typeInfo() graph.TypeInfo             { return v1("Add") }
func (subtractTag) typeInfo() graph.TypeInfo          { return v0("Subtract") }
func (subtractV1Tag) typeInfo() graph.TypeInfo        { return v1("Subtract") }
func (multiplyTag) typeInfo() graph.TypeInfo          { return v0("Multiply") }
func (multiplyV1Tag) typeInfo() graph.TypeInfo        { return v1("Multiply") }
func (divideTag) typeInfo() graph.TypeInfo            { return v0("Divide") }
func (divideV1Tag) typeInfo() graph.TypeInfo          { return v1("Divide") }
func (maximumTag) typeInfo() graph.TypeInfo           { return v0("Maximum") }
func (maximumV1Tag) typeInfo() graph.TypeInfo         { return v1("Maximum") }
func (minimumTag) typeInfo() graph.TypeInfo           { return v0("Minimum") }
func (minimumV1Tag) typeInfo() graph.TypeInfo         { return v1("Minimum") }
func (powerTag) typeInfo() graph.TypeInfo             { return v0("Power") }
func (powerV1Tag) typeInfo() graph.TypeInfo           { return v1("Power") }
func (squaredDifferenceTag) typeInfo() graph.TypeInfo { return v0("SquaredDifference") }
func (atan2Tag) typeInfo() graph.TypeInfo             { return v0("Atan2") }

func (addTag) kind() Kind               { return KindAdd }
func (addV1Tag) kind() Kind             { return KindAdd }
func (subtractTag) kind() Kind          { return KindSubtract }
func (subtractV1Tag) kind() Kind        { return KindSubtract }
func (multiplyTag) kind() Kind          { return KindMultiply }
func (multiplyV1Tag) kind() Kind        { return KindMultiply }
func (divideTag) kind() Kind            { return KindDivide }
func (divideV1Tag) kind() Kind          { return KindDivide }
func (maximumTag) kind() Kind           { return KindMaximum }
func (maximumV1Tag) kind() Kind         { return KindMaximum }
func (minimumTag) kind() Kind           { return KindMinimum }
func (minimumV1Tag) kind() Kind         { return KindMinimum }
func (powerTag) kind() Kind             { return KindPower }
func (powerV1Tag) kind() Kind           { return KindPower }
func (squaredDifferenceTag) kind() Kind { return KindSquaredDifference }
func (atan2Tag) kind() Kind             { return KindAtan2 }

func (equalTag) typeInfo() graph.TypeInfo          { return v0("Equal") }
func (equalV1Tag) typeInfo() graph.TypeInfo        { return v1("Equal") }
func (notEqualTag) typeInfo() graph.TypeInfo       { return v0("NotEqual") }
func (notEqualV1Tag) typeInfo() graph.TypeInfo     { return v1("NotEqual") }
func (greaterTag) typeInfo() graph.TypeInfo        { return v0("Greater") }
func (greaterV1Tag) typeInfo() graph.TypeInfo      { return v1("Greater") }
func (greaterEqTag) typeInfo() graph.TypeInfo      { return v0("GreaterEq") }
func (greaterEqualV1Tag) typeInfo() graph.TypeInfo { return v1("GreaterEqual") }
func (lessTag) typeInfo() graph.TypeInfo           { return v0("Less") }
func (lessV1Tag) typeInfo() graph.TypeInfo         { return v1("Less") }
func (lessEqTag) typeInfo() graph.TypeInfo         { return v0("LessEq") }
func (lessEqualV1Tag) typeInfo() graph.TypeInfo    { return v1("LessEqual") }

func (equalTag) kind() Kind          { return KindEqual }
func (equalV1Tag) kind() Kind        { return KindEqual }
func (notEqualTag) kind() Kind       { return KindNotEqual }
func (notEqualV1Tag) kind() Kind     { return KindNotEqual }
func (greaterTag) kind() Kind        { return KindGreater }
func (greaterV1Tag) kind() Kind      { return KindGreater }
func (greaterEqTag) kind() Kind      { return KindGreaterEqual }
func (greaterEqualV1Tag) kind() Kind { return KindGreaterEqual }
func (lessTag) kind() Kind           { return KindLess }
func (lessV1Tag) kind() Kind         { return KindLess }
func (lessEqTag) kind() Kind         { return KindLessEqual }
func (lessEqualV1Tag) kind() Kind    { return KindLessEqual }

func (andTag) typeInfo() graph.TypeInfo        { return v0("And") }
func (orTag) typeInfo() graph.TypeInfo         { return v0("Or") }
func (xorTag) typeInfo() graph.TypeInfo        { return v0("Xor") }
func (logicalAndTag) typeInfo() graph.TypeInfo { return v1("LogicalAnd") }
func (logicalOrTag) typeInfo() graph.TypeInfo  { return v1("LogicalOr") }
func (logicalXorTag) typeInfo() graph.TypeInfo { return v1("LogicalXor") }

func (andTag) kind() Kind        { return KindAnd }
func (orTag) kind() Kind         { return KindOr }
func (xorTag) kind() Kind        { return KindXor }
func (logicalAndTag) kind() Kind { return KindAnd }
func (logicalOrTag) kind() Kind  { return KindOr }
func (logicalXorTag) kind() Kind { return KindXor }

// Unary elementwise operators.
type (
	Abs        = Unary[absTag]
	Acos       = Unary[acosTag]
	Asin       = Unary[asinTag]
	Atan       = Unary[atanTag]
	Ceiling    = Unary[ceilingTag]
	Cos        = Unary[cosTag]
	Cosh       = Unary[coshTag]
	Erf        = Unary[erfTag]
	Exp        = Unary[expTag]
	Floor      = Unary[floorTag]
	Log        = Unary[logTag]
	Negative   = Unary[negativeTag]
	Relu       = Unary[reluTag]
	Sigmoid    = Unary[sigmoidTag]
	Sign       = Unary[signTag]
	Sin        = Unary[sinTag]
	Sinh       = Unary[sinhTag]
	Sqrt       = Unary[sqrtTag]
	Tan        = Unary[tanTag]
	Tanh       = Unary[tanhTag]
	Not        = Unary[notTag]
	LogicalNot = Unary[logicalNotTag]
)

// Binary arithmetic operators. The V1 variants default to numpy broadcasting.
type (
	Add               = Binary[addTag]
	AddV1             = Binary[addV1Tag]
	Subtract          = Binary[subtractTag]
	SubtractV1        = Binary[subtractV1Tag]
	Multiply          = Binary[multiplyTag]
	MultiplyV1        = Binary[multiplyV1Tag]
	Divide            = Binary[divideTag]
	DivideV1          = Binary[divideV1Tag]
	Maximum           = Binary[maximumTag]
	MaximumV1         = Binary[maximumV1Tag]
	Minimum           = Binary[minimumTag]
	MinimumV1         = Binary[minimumV1Tag]
	Power             = Binary[powerTag]
	PowerV1           = Binary[powerV1Tag]
	SquaredDifference = Binary[squaredDifferenceTag]
	Atan2             = Binary[atan2Tag]
)

// Comparison operators, producing booleans.
type (
	Equal          = Binary[equalTag]
	EqualV1        = Binary[equalV1Tag]
	NotEqual       = Binary[notEqualTag]
	NotEqualV1     = Binary[notEqualV1Tag]
	Greater        = Binary[greaterTag]
	GreaterV1      = Binary[greaterV1Tag]
	GreaterEq      = Binary[greaterEqTag]
	GreaterEqualV1 = Binary[greaterEqualV1Tag]
	Less           = Binary[lessTag]
	LessV1         = Binary[lessV1Tag]
	LessEq         = Binary[lessEqTag]
	LessEqualV1    = Binary[lessEqualV1Tag]
)

// Logical operators.
type (
	And        = Binary[andTag]
	Or         = Binary[orTag]
	Xor        = Binary[xorTag]
	LogicalAnd = Binary[logicalAndTag]
	LogicalOr  = Binary[logicalOrTag]
	LogicalXor = Binary[logicalXorTag]
)
