// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import "fmt"

// NodeValidationError is returned when an operator doesn't accept the inputs of a new node,
// either when building a graph or when re-validating a clone.
type NodeValidationError struct {
	// Node is the name the node would have had.
	Node     string
	TypeInfo TypeInfo
	Err      error
}

// Error implements error.
func (e *NodeValidationError) Error() string {
	return fmt.Sprintf("validation of node %s (%s) failed: %v", e.Node, e.TypeInfo, e.Err)
}

// Unwrap returns the operator's error.
func (e *NodeValidationError) Unwrap() error { return e.Err }
