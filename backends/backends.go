// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backends defines the runtime side of a lowered computation: the registry of backends, the
// buffers holding tensor data, and the ExternalFunction that queues the functors emitted while lowering.
//
// A backend provides a Distributed interface per rank, used by collective operations like AllReduce.
//
// Backends are selected by a configuration string "<backend_name>:<backend_configuration>", see New.
package backends

import (
	"os"
	"strings"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gp1322719830/ngraph/pkg/support/xslices"
)

// Backend is the API that needs to be implemented by a runtime backend.
type Backend interface {
	// Name returns the short name of the backend. E.g.: "local" for the in-process backend.
	Name() string

	// Description is a longer description of the Backend that can be used to pretty-print.
	Description() string

	// NumRanks returns the number of ranks (participants) of distributed computations.
	NumRanks() int

	// Distributed returns the collective operations interface as seen by the given rank.
	Distributed(rank int) (Distributed, error)

	// Finalize releases all the associated resources immediately, and makes the backend invalid.
	// Ranks blocked in collective operations are woken up with an error.
	Finalize()
}

// Constructor takes a config string (optionally empty) and returns a Backend.
type Constructor func(config string) Backend

var (
	muRegistry             sync.Mutex
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register backend with the given name, and a default constructor that takes as input a configuration string that is
// passed along to the backend constructor.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// List returns the names of the registered backends, sorted.
func List() []string {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	return xslices.SortedKeys(registeredConstructors)
}

// DefaultConfig is the name of the default backend configuration to use if specified.
//
// See NewWithConfig for the format of the configuration string.
var DefaultConfig string

// NGRAPH_BACKEND is the environment variable with the default backend configuration to use.
//
// The format of config is "<backend_name>:<backend_configuration>".
// The "<backend_name>" is the name of a registered backend (e.g.: "local") and
// "<backend_configuration>" is backend specific (e.g.: for the local backend, "world=4").
const NGRAPH_BACKEND = "NGRAPH_BACKEND"

// New returns a new default Backend.
//
// The default is:
//
// 1. The environment NGRAPH_BACKEND is used as a configuration if defined.
// 2. Next the variable DefaultConfig is used as a configuration if defined.
// 3. The first registered backend is used with an empty configuration.
//
// It panics if no backend was registered.
func New() Backend {
	config, found := os.LookupEnv(NGRAPH_BACKEND)
	if found {
		return NewWithConfig(config)
	}
	if DefaultConfig != "" {
		return NewWithConfig(DefaultConfig)
	}
	return NewWithConfig("")
}

// NewWithConfig takes a configurations string formatted as "<backend_name>:<backend_configuration>".
// If there is no ":", the whole config is taken as the configuration of the first registered backend,
// unless it matches the name of a registered backend.
func NewWithConfig(config string) Backend {
	muRegistry.Lock()
	if len(registeredConstructors) == 0 {
		muRegistry.Unlock()
		exceptions.Panicf(`no registered backends -- maybe import the in-process one with import _ "github.com/gp1322719830/ngraph/backends/local"?`)
	}
	backendName := firstRegistered
	backendConfig := config
	if idx := strings.Index(config, ":"); idx != -1 {
		backendName = config[:idx]
		backendConfig = config[idx+1:]
	} else if _, found := registeredConstructors[config]; found {
		backendName = config
		backendConfig = ""
	}
	constructor, found := registeredConstructors[backendName]
	muRegistry.Unlock()
	if !found {
		exceptions.Panicf("can't find backend %q for configuration %q given", backendName, config)
	}
	return constructor(backendConfig)
}
