// Package id generates identifiers for events, trace records and recordings.
package id

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator produces unique identifiers.
type IDGenerator interface {
	Generate() string
}

// NewIDGenerator returns a generator that counts up from 1. IDs are short
// and deterministic, which keeps event logs diffable between runs.
func NewIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

// NewGlobalIDGenerator returns a generator whose IDs are unique across
// processes, for names of recordings and trace tasks.
func NewGlobalIDGenerator() IDGenerator {
	return globalIDGenerator{}
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)

	return strconv.FormatUint(idNumber, 10)
}

type globalIDGenerator struct{}

func (globalIDGenerator) Generate() string {
	return xid.New().String()
}

var (
	defaultGeneratorOnce sync.Once
	defaultGenerator     IDGenerator
)

// Generate returns an ID from the process-wide sequential generator.
func Generate() string {
	defaultGeneratorOnce.Do(func() {
		defaultGenerator = NewIDGenerator()
	})

	return defaultGenerator.Generate()
}
