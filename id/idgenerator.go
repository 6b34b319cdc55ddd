// Package id generates the identifiers attached to requests and runs.
package id

import (
	"log"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

var generatorMutex sync.Mutex
var generatorInstantiated bool
var generator Generator

// Generator can generate IDs.
type Generator interface {
	// Generate an ID
	Generate() string
}

// UseSequentialGenerator configures the ID generator to generate IDs in
// sequential.
func UseSequentialGenerator() {
	if generatorInstantiated {
		log.Panic("cannot change id generator type after using it")
	}

	generatorMutex.Lock()
	if generatorInstantiated {
		log.Panic("cannot change id generator type after using it")
	}

	generator = &sequentialGenerator{}
	generatorInstantiated = true

	generatorMutex.Unlock()
}

// UseParallelGenerator configures the ID generator to generate IDs that are
// unique across goroutines. The IDs generated will not be deterministic
// anymore.
func UseParallelGenerator() {
	if generatorInstantiated {
		log.Panic("cannot change id generator type after using it")
	}

	generatorMutex.Lock()
	if generatorInstantiated {
		log.Panic("cannot change id generator type after using it")
	}

	generator = &parallelGenerator{}
	generatorInstantiated = true

	generatorMutex.Unlock()
}

// GetGenerator returns the ID generator used in the current process.
func GetGenerator() Generator {
	if generatorInstantiated {
		return generator
	}

	generatorMutex.Lock()
	if generatorInstantiated {
		generatorMutex.Unlock()
		return generator
	}

	generator = &sequentialGenerator{}
	generatorInstantiated = true
	generatorMutex.Unlock()
	return generator
}

type sequentialGenerator struct {
	nextID uint64
}

func (g *sequentialGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)
	id := strconv.FormatUint(idNumber, 10)
	return id
}

type parallelGenerator struct {
}

func (g parallelGenerator) Generate() string {
	return xid.New().String()
}
