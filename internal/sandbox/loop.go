package sandbox

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// job is one unit of work on the page loop. Every access to the VM happens
// inside a job.
type job struct {
	ctx     context.Context
	origin  string
	timeout time.Duration
	fn      func() error
	done    func(error)
}

// post queues j. It reports false once the page is closed.
func (p *Page) post(j job) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.queue = append(p.queue, j)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return true
}

func (p *Page) next() (job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || len(p.queue) == 0 {
		return job{}, false
	}
	j := p.queue[0]
	p.queue[0] = job{}
	p.queue = p.queue[1:]
	return j, true
}

// run is the page loop
func (p *Page) run() {
	defer close(p.done)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.wake:
		}

		for {
			j, ok := p.next()
			if !ok {
				break
			}
			err := p.exec(j)
			if j.done != nil {
				j.done(err)
			}
		}
	}
}

// exec runs one job with its deadline and drains the DOM mutations it made
func (p *Page) exec(j job) (err error) {
	p.vm.ClearInterrupt()
	// an interrupt from Close that landed before the clear must not be lost
	if p.ctx.Err() != nil {
		return ErrPageClosed
	}
	p.stats.jobs.Add(1)
	p.origin = j.origin

	if j.timeout > 0 {
		fired := make(chan struct{})
		t := time.AfterFunc(j.timeout, func() {
			p.vm.Interrupt(fmt.Errorf("exceeded %s", j.timeout))
			close(fired)
		})
		defer func() {
			if !t.Stop() {
				<-fired
			}
		}()
	}

	if j.ctx != nil {
		fired := make(chan struct{})
		stop := context.AfterFunc(j.ctx, func() {
			p.vm.Interrupt(j.ctx.Err())
			close(fired)
		})
		defer func() {
			if !stop() {
				<-fired
			}
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("page job panicked",
				zap.String("origin", j.origin),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = &ScriptError{Origin: j.origin, Message: fmt.Sprint(r), Err: fmt.Errorf("panic: %v", r)}
		}
		p.flushMutations()
		p.origin = ""
	}()

	return p.scriptError(j.origin, j.fn())
}

// scriptError normalizes goja failures into *ScriptError
func (p *Page) scriptError(origin string, err error) error {
	if err == nil {
		return nil
	}

	var se *ScriptError
	if errors.As(err, &se) {
		return err
	}

	out := &ScriptError{Origin: origin, Message: err.Error(), Err: err}

	var exc *goja.Exception
	var interrupted *goja.InterruptedError
	switch {
	case errors.As(err, &interrupted):
		out.Interrupted = true
		out.Message = fmt.Sprint(interrupted.Value())
		if cause, ok := interrupted.Value().(error); ok {
			out.Err = cause
		}
	case errors.As(err, &exc):
		out.Message = exc.Value().String()
	}
	return out
}

// await posts fn and waits for it to finish
func (p *Page) await(ctx context.Context, origin string, timeout time.Duration, fn func() error) error {
	res := make(chan error, 1)
	ok := p.post(job{
		ctx:     ctx,
		origin:  origin,
		timeout: timeout,
		fn:      fn,
		done:    func(err error) { res <- err },
	})
	if !ok {
		return ErrPageClosed
	}

	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		select {
		case err := <-res:
			return err
		default:
			return ErrPageClosed
		}
	}
}

// callback wraps a page function so the host can invoke it from any
// goroutine. Calls after Close are dropped.
func (p *Page) callback(origin string, fn goja.Callable, what string) func(args ...any) {
	return func(args ...any) {
		p.post(job{
			origin:  origin,
			timeout: p.cfg.CallbackTimeout,
			fn: func() error {
				vals := make([]goja.Value, len(args))
				for i, a := range args {
					vals[i] = p.vm.ToValue(a)
				}
				_, err := fn(goja.Undefined(), vals...)
				return err
			},
			done: func(err error) { p.reportCallbackError(origin, what, err) },
		})
	}
}

func (p *Page) reportCallbackError(origin, what string, err error) {
	if err == nil {
		return
	}
	p.stats.scriptErrors.Add(1)
	p.logger.Warn("page callback failed",
		zap.String("origin", origin),
		zap.String("callback", what),
		zap.Error(err),
	)
}
