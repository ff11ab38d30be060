package supervisor

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/GriffinCanCode/modhost/internal/shared/id"
	"go.uber.org/zap"
)

const maxLineBytes = 1 << 20

// capture surfaces each worker output line as a host log record tagged by
// stream. stdout is logged at info and stderr at warn.
func (s *Supervisor) capture(wid id.WorkerID, stream string, r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()

	log := s.logger.With(
		zap.String("worker", wid.String()),
		zap.String("stream", stream),
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for sc.Scan() {
		line := strings.TrimRightFunc(sc.Text(), unicode.IsSpace)
		if line == "" {
			continue
		}

		s.metrics.RecordWorkerLine(stream)
		if stream == Stderr {
			log.Warn("worker output", zap.String("line", line))
		} else {
			log.Info("worker output", zap.String("line", line))
		}
	}

	if err := sc.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		log.Warn("worker output capture stopped", zap.Error(err))
		// keep draining so the worker never blocks on a full pipe
		_, _ = io.Copy(io.Discard, r)
	}
}
