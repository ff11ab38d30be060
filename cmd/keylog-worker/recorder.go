package main

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/GriffinCanCode/modhost/internal/telemetry"
)

var header = []string{"System Timestamp", "JS Performance Time (s)", "Key", "Action"}

const timestampLayout = "2006-01-02 15:04:05.000"

// recorder appends telemetry events to a CSV file
type recorder struct {
	path   string
	now    func() time.Time
	stdout io.Writer
	stderr io.Writer
}

// run consumes newline-delimited events until r is exhausted
func (rec *recorder) run(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		ev, err := telemetry.Decode(line)
		if err != nil {
			fmt.Fprintf(rec.stderr, "Invalid JSON received: %s\n", line)
			continue
		}
		if err := rec.record(ev); err != nil {
			fmt.Fprintf(rec.stderr, "Error writing to log file: %v\n", err)
		}
	}
	return sc.Err()
}

func (rec *recorder) record(ev telemetry.Event) error {
	_, statErr := os.Stat(rec.path)
	fresh := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(rec.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	// event times are page milliseconds
	sec := strconv.FormatFloat(ev.Time/1000, 'f', 6, 64)

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write([]string{rec.now().Format(timestampLayout), sec, ev.Key, string(ev.Action)}); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	fmt.Fprintf(rec.stdout, "Logged: %s %s at %s\n", ev.Key, ev.Action, sec)
	return nil
}
