package extension

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/GriffinCanCode/modhost/internal/shared/id"
)

// Status is the injection state of one module within a cycle
type Status string

const (
	Pending  Status = "pending"
	Injected Status = "injected"
	Failed   Status = "failed"
)

// Descriptor is one extension module in one content-load cycle
type Descriptor struct {
	Name      string        `json:"name"`
	Path      string        `json:"path"`
	LoadOrder int           `json:"load_order"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Cycle is one pass of the injector over a freshly loaded page
type Cycle struct {
	ID        id.CycleID   `json:"id"`
	Page      id.PageID    `json:"page"`
	Started   time.Time    `json:"started"`
	Finished  time.Time    `json:"finished"`
	Cancelled bool         `json:"cancelled"`
	Modules   []Descriptor `json:"modules"`
}

// Counts tallies module statuses
func (c Cycle) Counts() (injected, failed, pending int) {
	for _, d := range c.Modules {
		switch d.Status {
		case Injected:
			injected++
		case Failed:
			failed++
		default:
			pending++
		}
	}
	return injected, failed, pending
}

// Discover lists the modules in dir: regular files ending in suffix, sorted
// by file name. A missing directory yields no modules and no error.
func Discover(dir, suffix string) ([]Descriptor, error) {
	if suffix == "" {
		suffix = ".js"
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read extension directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)

	out := make([]Descriptor, len(names))
	for i, name := range names {
		out[i] = Descriptor{
			Name:      name,
			Path:      filepath.Join(dir, name),
			LoadOrder: i,
			Status:    Pending,
		}
	}
	return out, nil
}
