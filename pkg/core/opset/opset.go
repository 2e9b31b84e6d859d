// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package opset is the operator identity registry: it assigns each operator kind of the catalog
// (package ops, plus the structural operators of package graph) a stable OpTypeID.
//
// Identification is by the Go type of the operator, never by its name: operators with the same
// name and different versions (e.g. ops.Add and ops.AddV1) have different ids.
//
// The registry is built once, on first use, and is read-only afterward: it is safe for
// concurrent use.
package opset

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gp1322719830/ngraph/pkg/core/graph"
	"github.com/gp1322719830/ngraph/pkg/core/ops"
)

// OpTypeID identifies an operator kind. Values are assigned in catalog order, starting at 1.
type OpTypeID int

// Unknown is the OpTypeID of operators not in the catalog.
const Unknown OpTypeID = 0

// catalog lists one prototype per supported operator kind. The order defines the ids.
func catalog() []graph.Operator {
	return []graph.Operator{
		&graph.Parameter{}, &graph.Result{}, &graph.Constant{},

		&ops.Abs{}, &ops.Acos{}, &ops.Asin{}, &ops.Atan{}, &ops.Ceiling{}, &ops.Cos{}, &ops.Cosh{},
		&ops.Erf{}, &ops.Exp{}, &ops.Floor{}, &ops.Log{}, &ops.Negative{}, &ops.Relu{},
		&ops.Sigmoid{}, &ops.Sign{}, &ops.Sin{}, &ops.Sinh{}, &ops.Sqrt{}, &ops.Tan{}, &ops.Tanh{},
		&ops.Not{}, &ops.LogicalNot{},

		&ops.Add{}, &ops.AddV1{}, &ops.Subtract{}, &ops.SubtractV1{}, &ops.Multiply{},
		&ops.MultiplyV1{}, &ops.Divide{}, &ops.DivideV1{}, &ops.Maximum{}, &ops.MaximumV1{},
		&ops.Minimum{}, &ops.MinimumV1{}, &ops.Power{}, &ops.PowerV1{}, &ops.SquaredDifference{},
		&ops.Atan2{},

		&ops.Equal{}, &ops.EqualV1{}, &ops.NotEqual{}, &ops.NotEqualV1{}, &ops.Greater{},
		&ops.GreaterV1{}, &ops.GreaterEq{}, &ops.GreaterEqualV1{}, &ops.Less{}, &ops.LessV1{},
		&ops.LessEq{}, &ops.LessEqualV1{},

		&ops.And{}, &ops.Or{}, &ops.Xor{}, &ops.LogicalAnd{}, &ops.LogicalOr{}, &ops.LogicalXor{},

		&ops.Convert{}, &ops.Dot{}, &ops.MatMul{}, &ops.Sum{}, &ops.ReduceSum{}, &ops.ReduceMax{},
		&ops.ReduceMin{}, &ops.ReduceMean{}, &ops.ReduceProd{}, &ops.ArgMax{}, &ops.ArgMin{},
		&ops.Reshape{}, &ops.Concat{}, &ops.Softmax{}, &ops.Select{}, &ops.Clamp{}, &ops.Split{},
		&ops.Convolution{}, &ops.QuantizedConvolution{}, &ops.EmbeddingBagOffsetsSum{},
		&ops.AllReduce{}, &ops.StopGradient{},
	}
}

type registry struct {
	byType map[reflect.Type]OpTypeID
	byInfo map[graph.TypeInfo]OpTypeID

	// infos and prototypes are indexed by OpTypeID, entry 0 is Unknown.
	infos      []graph.TypeInfo
	prototypes []graph.Operator
}

var (
	registryOnce sync.Once
	theRegistry  *registry
)

func get() *registry {
	registryOnce.Do(func() {
		prototypes := catalog()
		r := &registry{
			byType:     make(map[reflect.Type]OpTypeID, len(prototypes)),
			byInfo:     make(map[graph.TypeInfo]OpTypeID, len(prototypes)),
			infos:      make([]graph.TypeInfo, 1, len(prototypes)+1),
			prototypes: make([]graph.Operator, 1, len(prototypes)+1),
		}
		r.infos[Unknown] = graph.TypeInfo{Name: "Unknown"}
		for _, proto := range prototypes {
			id := OpTypeID(len(r.infos))
			goType, info := reflect.TypeOf(proto), proto.TypeInfo()
			if prev, found := r.byType[goType]; found {
				exceptions.Panicf("opset: operator type %s registered twice (%s and %s)", goType, r.infos[prev], info)
			}
			if prev, found := r.byInfo[info]; found {
				exceptions.Panicf("opset: operator %s registered twice (%s and %s)", info, r.prototypes[prev], goType)
			}
			r.byType[goType] = id
			r.byInfo[info] = id
			r.infos = append(r.infos, info)
			r.prototypes = append(r.prototypes, proto)
		}
		theRegistry = r
	})
	return theRegistry
}

// IdentifyOperator returns the OpTypeID of the operator, or Unknown if it is not in the catalog.
func IdentifyOperator(op graph.Operator) OpTypeID {
	if op == nil {
		return Unknown
	}
	return get().byType[reflect.TypeOf(op)]
}

// Identify returns the OpTypeID of the node's operator, or Unknown if it is not in the catalog.
func Identify(node *graph.Node) OpTypeID {
	return IdentifyOperator(node.Operator())
}

// Lookup returns the OpTypeID registered with the given name and version. It is meant for
// debugging and tools: the engines identify operators with Identify.
func Lookup(info graph.TypeInfo) (OpTypeID, bool) {
	id, found := get().byInfo[info]
	return id, found
}

// NumOpTypes returns the number of operator kinds in the catalog.
func NumOpTypes() int { return len(get().infos) - 1 }

// Catalog returns all registered ids, in order.
func Catalog() []OpTypeID {
	ids := make([]OpTypeID, NumOpTypes())
	for i := range ids {
		ids[i] = OpTypeID(i + 1)
	}
	return ids
}

// IsValid returns whether id is a registered operator kind.
func (id OpTypeID) IsValid() bool {
	return id > Unknown && int(id) < len(get().infos)
}

// TypeInfo returns the name and version of the operator kind.
func (id OpTypeID) TypeInfo() graph.TypeInfo {
	if !id.IsValid() {
		return get().infos[Unknown]
	}
	return get().infos[id]
}

// Prototype returns the catalog's zero-attributes instance of the operator kind, or nil for
// invalid ids. It must not be modified.
func (id OpTypeID) Prototype() graph.Operator {
	if !id.IsValid() {
		return nil
	}
	return get().prototypes[id]
}

// String implements fmt.Stringer, e.g. "Add_v1".
func (id OpTypeID) String() string {
	if !id.IsValid() {
		return fmt.Sprintf("Unknown(%d)", int(id))
	}
	return id.TypeInfo().String()
}
