// Package guard owns the handles behind a capture stream: exactly one file
// and at most one capture context. Releasing them is a single idempotent step.
package guard

import (
	"expvar"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/vearne/pcapkit/pcaperr"
	slog "github.com/vearne/simplelog"
)

var (
	stats *expvar.Map
	live  int64
)

func init() {
	stats = expvar.NewMap("guard")
	stats.Init()
}

// Live returns the number of guards that have not been closed yet.
func Live() int64 {
	return atomic.LoadInt64(&live)
}

// Guard is the single point of truth for whether a stream is usable.
// The capture context is non-nil only while the guard is open.
type Guard struct {
	mu     sync.Mutex
	name   string
	file   *os.File
	owned  bool
	ctx    io.Closer
	closed bool
}

// Open opens path with os.OpenFile semantics and wraps the result.
func Open(path string, flag int, perm os.FileMode) (*Guard, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, &pcaperr.IOError{Op: "open", Path: path, Err: err}
	}
	return newGuard(path, f, true), nil
}

// Wrap takes an already opened file. When owned is false Close leaves the
// file itself open, which is what the process's standard streams need.
func Wrap(f *os.File, owned bool) *Guard {
	return newGuard(f.Name(), f, owned)
}

func newGuard(name string, f *os.File, owned bool) *Guard {
	g := &Guard{name: name, file: f, owned: owned}
	atomic.AddInt64(&live, 1)
	stats.Add("opened", 1)
	// owners that forget to Close still release the handles once g is unreachable
	runtime.SetFinalizer(g, func(g *Guard) {
		g.Close()
	})
	slog.Debug("guard open, name:%v, owned:%v", name, owned)
	return g
}

func (g *Guard) Name() string {
	return g.name
}

// Attach stores the capture context. Only one context may be attached.
func (g *Guard) Attach(ctx io.Closer) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return &pcaperr.ClosedError{Name: g.name}
	}
	if g.ctx != nil {
		return errors.Errorf("capture context already attached to %q", g.name)
	}
	g.ctx = ctx
	return nil
}

// Detach removes the capture context without releasing it.
func (g *Guard) Detach() (io.Closer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, &pcaperr.ClosedError{Name: g.name}
	}
	ctx := g.ctx
	g.ctx = nil
	return ctx, nil
}

// Context returns the attached capture context, nil if none is attached.
func (g *Guard) Context() (io.Closer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, &pcaperr.ClosedError{Name: g.name}
	}
	return g.ctx, nil
}

func (g *Guard) File() (*os.File, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, &pcaperr.ClosedError{Name: g.name}
	}
	return g.file, nil
}

func (g *Guard) Fd() (uintptr, error) {
	f, err := g.File()
	if err != nil {
		return 0, err
	}
	return f.Fd(), nil
}

func (g *Guard) IsClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Close releases the capture context and then the file. Calling Close on a
// closed guard does nothing and returns nil. The first release failure is
// reported, but both handles are always dropped.
func (g *Guard) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true

	var first error
	if g.ctx != nil {
		if err := g.ctx.Close(); err != nil {
			first = &pcaperr.IOError{Op: "release capture context", Path: g.name, Err: err}
		}
		g.ctx = nil
	}
	if g.owned {
		if err := g.file.Close(); err != nil && first == nil {
			first = &pcaperr.IOError{Op: "close", Path: g.name, Err: err}
		}
	}
	g.file = nil

	atomic.AddInt64(&live, -1)
	stats.Add("closed", 1)
	runtime.SetFinalizer(g, nil)
	slog.Debug("guard closed, name:%v", g.name)
	return first
}
