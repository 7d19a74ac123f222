package capture

import (
	"context"
	"expvar"
	"sync"
	"time"

	"github.com/vearne/pcapkit/model"
	"github.com/vearne/pcapkit/pcaperr"
	"github.com/vearne/pcapkit/pcapfile"
	slog "github.com/vearne/simplelog"
	"golang.org/x/time/rate"
)

var stats *expvar.Map

func init() {
	stats = expvar.NewMap("capture")
	stats.Init()
}

// State of an Engine. An engine only ever moves forward.
type State uint8

const (
	StateConfigured State = iota
	StateRunning
	StateFinished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Result describes a completed run. It is returned for failed runs too, with
// Packets counting what reached the output before the failure.
type Result struct {
	Interface string    `json:"interface"`
	Output    string    `json:"output"`
	Packets   int       `json:"packets"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
}

type Option func(*Engine)

func WithOpener(o Opener) Option {
	return func(e *Engine) {
		e.opener = o
	}
}

// WithProgressInterval sets how often a running capture logs its progress.
func WithProgressInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.progress = d
	}
}

// Engine captures a bounded number of frames off one interface into one
// capture file. It runs at most once.
type Engine struct {
	sync.Mutex

	params   CaptureParameters
	opener   Opener
	progress time.Duration
	state    State
}

// NewEngine validates params before anything is opened.
func NewEngine(params CaptureParameters, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		params:   params,
		opener:   PcapOpener{},
		progress: 5 * time.Second,
		state:    StateConfigured,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Params() CaptureParameters {
	return e.params
}

func (e *Engine) State() State {
	e.Lock()
	defer e.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.Lock()
	e.state = s
	e.Unlock()
}

// Start opens the interface, then the output file, and dumps frames as they
// arrive until MaxPackets frames are written, the source is exhausted, or ctx
// is done. Cancellation is noticed between reads, so it can take up to one
// read timeout. Frames dumped before a failure stay in the output file.
func (e *Engine) Start(ctx context.Context) (Result, error) {
	e.Lock()
	if e.state != StateConfigured {
		e.Unlock()
		return Result{}, &pcaperr.AlreadyStartedError{Interface: e.params.InterfaceName}
	}
	e.state = StateRunning
	e.Unlock()

	p := e.params
	res := Result{Interface: p.InterfaceName, Output: p.OutputFilename, Started: time.Now()}

	handle, err := e.opener.OpenLive(p.InterfaceName, p.SnapLength(), p.Promiscuous,
		time.Duration(p.TimeoutMs)*time.Millisecond)
	if err != nil {
		return e.fail(res, &pcaperr.InterfaceOpenError{Interface: p.InterfaceName, Diag: err.Error()})
	}

	w, err := pcapfile.OpenWriterWith(pcapfile.Path(p.OutputFilename), pcapfile.WriterOptions{
		LinkType: handle.LinkType(),
		SnapLen:  uint32(p.SnapLength()),
	})
	if err != nil {
		handle.Close()
		return e.fail(res, &pcaperr.OutputOpenError{Path: p.OutputFilename, Err: err})
	}
	slog.Info("capture started, interface:%v, output:%v, maxPackets:%v, promisc:%v",
		p.InterfaceName, p.OutputFilename, p.MaxPackets, p.Promiscuous)

	res.Packets, err = e.loop(ctx, handle, w)
	e.logStats(handle)
	handle.Close()
	if cerr := w.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return e.fail(res, &pcaperr.CaptureLoopError{Interface: p.InterfaceName, Dumped: res.Packets, Err: err})
	}

	res.Finished = time.Now()
	e.setState(StateFinished)
	stats.Add("runs_ok", 1)
	slog.Info("capture finished, interface:%v, packets:%v, elapsed:%v",
		p.InterfaceName, res.Packets, res.Finished.Sub(res.Started))
	return res, nil
}

func (e *Engine) loop(ctx context.Context, handle Handle, w *pcapfile.Writer) (int, error) {
	limiter := rate.NewLimiter(rate.Every(e.progress), 1)
	// the first token would log right away
	limiter.Allow()

	dumped := 0
	for dumped < e.params.MaxPackets {
		select {
		case <-ctx.Done():
			return dumped, ctx.Err()
		default:
		}

		data, ci, err := handle.ReadPacketData()
		if err != nil {
			if recoverable(err) {
				stats.Add("timeouts", 1)
				continue
			}
			if finished(err) {
				slog.Debug("capture source exhausted, interface:%v", e.params.InterfaceName)
				return dumped, nil
			}
			return dumped, err
		}

		if err = w.WritePacket(model.FromCaptureInfo(data, ci)); err != nil {
			return dumped, err
		}
		dumped++
		stats.Add("packets_dumped", 1)
		if limiter.Allow() {
			slog.Info("capturing, interface:%v, dumped:%v/%v", e.params.InterfaceName, dumped, e.params.MaxPackets)
		}
	}
	return dumped, nil
}

func (e *Engine) logStats(handle Handle) {
	h, ok := handle.(PcapStatProvider)
	if !ok {
		return
	}
	s, err := h.Stats()
	if err != nil {
		slog.Debug("read pcap stats error:%v", err)
		return
	}
	stats.Add("packets_received", int64(s.PacketsReceived))
	stats.Add("packets_dropped", int64(s.PacketsDropped))
	slog.Info("pcap stats, interface:%v, received:%v, dropped:%v, ifDropped:%v",
		e.params.InterfaceName, s.PacketsReceived, s.PacketsDropped, s.PacketsIfDropped)
}

func (e *Engine) fail(res Result, err error) (Result, error) {
	res.Finished = time.Now()
	e.setState(StateFailed)
	stats.Add("runs_failed", 1)
	slog.Error("capture failed, %v", err)
	return res, err
}

// StartBackground is like Start but runs in its own goroutine and reports
// through the returned channel, which is closed once the run is over.
func (e *Engine) StartBackground(ctx context.Context) chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if _, err := e.Start(ctx); err != nil {
			errCh <- err
		}
	}()
	return errCh
}
