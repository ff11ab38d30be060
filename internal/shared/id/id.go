// Package id provides centralized ID generation for the host.
//
// IDs are prefixed ULIDs:
//   - Lexicographic sortability: spawn and load order survive in logs
//   - Prefixed types: wrk_*, cyc_*, page_* are readable at a glance
//   - Type safety: separate types prevent passing a cycle ID where a worker ID is expected
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// WorkerID identifies one spawn of the worker process
type WorkerID string

// CycleID identifies one content-load injection cycle
type CycleID string

// PageID identifies one loaded page of the display surface
type PageID string

const (
	WorkerPrefix = "wrk"
	CyclePrefix  = "cyc"
	PagePrefix   = "page"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Tests use it for deterministic output.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewWorkerID generates a new worker spawn ID
func NewWorkerID() WorkerID {
	return WorkerID(Default().GenerateWithPrefix(WorkerPrefix))
}

// NewCycleID generates a new injection cycle ID
func NewCycleID() CycleID {
	return CycleID(Default().GenerateWithPrefix(CyclePrefix))
}

// NewPageID generates a new page ID
func NewPageID() PageID {
	return PageID(Default().GenerateWithPrefix(PagePrefix))
}

func (id WorkerID) String() string { return string(id) }
func (id CycleID) String() string  { return string(id) }
func (id PageID) String() string   { return string(id) }

// Timestamp extracts the creation time from a prefixed ID
func Timestamp(prefixed string) (time.Time, error) {
	_, raw, ok := strings.Cut(prefixed, "_")
	if !ok {
		raw = prefixed
	}
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
