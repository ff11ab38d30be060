package extension

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
)

// Inventory summarizes the extension tree. Only top-level modules are loaded;
// nested files are counted so a misplaced module is visible at startup.
type Inventory struct {
	Dir     string `json:"dir"`
	Exists  bool   `json:"exists"`
	Modules int    `json:"modules"`
	Nested  int    `json:"nested"`
	Other   int    `json:"other"`
	Bytes   int64  `json:"bytes"`
}

// Survey walks dir and returns its inventory
func Survey(dir, suffix string) (Inventory, error) {
	if suffix == "" {
		suffix = ".js"
	}
	inv := Inventory{Dir: dir}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return inv, nil
		}
		return inv, err
	}
	if !info.IsDir() {
		return inv, nil
	}
	inv.Exists = true

	var mu sync.Mutex
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}

		var size int64
		if fi, ierr := d.Info(); ierr == nil {
			size = fi.Size()
		}
		top := filepath.Dir(p) == filepath.Clean(dir)
		isModule := d.Type().IsRegular() && strings.HasSuffix(d.Name(), suffix)

		mu.Lock()
		defer mu.Unlock()
		inv.Bytes += size
		switch {
		case isModule && top:
			inv.Modules++
		case isModule:
			inv.Nested++
		default:
			inv.Other++
		}
		return nil
	})
	return inv, err
}
