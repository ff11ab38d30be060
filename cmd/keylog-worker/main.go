package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

func main() {
	out := flag.String("out", "key_press_log.csv", "CSV file to append to")
	flag.Parse()

	rec := &recorder{
		path:   *out,
		now:    time.Now,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	// stdin closing is the host's stop signal
	if err := rec.run(os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "An unexpected error occurred: %v\n", err)
		os.Exit(1)
	}
}
