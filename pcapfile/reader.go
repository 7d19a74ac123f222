package pcapfile

import (
	"bufio"
	"io"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/vearne/pcapkit/consts"
	"github.com/vearne/pcapkit/guard"
	"github.com/vearne/pcapkit/model"
	"github.com/vearne/pcapkit/pcaperr"
	slog "github.com/vearne/simplelog"
)

// offlineContext is the capture context of a reader.
type offlineContext struct {
	r *pcapgo.Reader
}

func (c *offlineContext) Close() error {
	c.r = nil
	return nil
}

// Reader gives sequential read-only access to a recorded capture.
// Packets come out in file order with nanosecond timestamps.
// A Reader must not be used from several goroutines at once.
type Reader struct {
	guard    *guard.Guard
	linkType layers.LinkType
	snapLen  uint32
	eof      bool
}

// OpenReader opens src and its capture context. If the context cannot be
// created the file is released before the error is returned.
func OpenReader(src Source) (*Reader, error) {
	g, err := src.openRead()
	if err != nil {
		return nil, err
	}
	f, err := g.File()
	if err != nil {
		return nil, err
	}

	pr, err := pcapgo.NewReader(bufio.NewReader(f))
	if err != nil {
		diag := err.Error()
		g.Close()
		return nil, &pcaperr.CaptureOpenError{Path: g.Name(), Diag: diag}
	}
	snapLen := pr.Snaplen()
	if snapLen < consts.MaxRecordSize {
		pr.SetSnaplen(consts.MaxRecordSize)
	}
	if err = g.Attach(&offlineContext{r: pr}); err != nil {
		g.Close()
		return nil, err
	}

	slog.Debug("reader open, name:%v, linkType:%v, snapLen:%v", g.Name(), pr.LinkType(), snapLen)
	return &Reader{
		guard:    g,
		linkType: pr.LinkType(),
		snapLen:  snapLen,
	}, nil
}

func (r *Reader) source() (*pcapgo.Reader, error) {
	ctx, err := r.guard.Context()
	if err != nil {
		return nil, err
	}
	oc, ok := ctx.(*offlineContext)
	if !ok || oc.r == nil {
		return nil, &pcaperr.SourceClosedError{Name: r.guard.Name()}
	}
	return oc.r, nil
}

// Next returns the next packet, or io.EOF once the capture is exhausted.
// The sequence cannot be restarted.
func (r *Reader) Next() (model.Packet, error) {
	pr, err := r.source()
	if err != nil {
		return model.Packet{}, err
	}
	if r.eof {
		return model.Packet{}, io.EOF
	}

	data, ci, err := pr.ReadPacketData()
	if err == io.EOF {
		r.eof = true
		return model.Packet{}, io.EOF
	}
	if err != nil {
		return model.Packet{}, &pcaperr.IOError{Op: "read", Path: r.guard.Name(), Err: err}
	}
	stats.Add("packets_read", 1)
	return model.FromCaptureInfo(data, ci), nil
}

// Count drains the remaining packets and returns how many there were.
// After Count, Next reports io.EOF.
func (r *Reader) Count() (int, error) {
	n := 0
	for {
		_, err := r.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

func (r *Reader) Close() error {
	return r.guard.Close()
}

func (r *Reader) IsClosed() bool {
	return r.guard.IsClosed()
}

func (r *Reader) Fd() (uintptr, error) {
	return r.guard.Fd()
}

func (r *Reader) Name() string {
	return r.guard.Name()
}

func (r *Reader) LinkType() layers.LinkType {
	return r.linkType
}

// SnapLen is the snap length written in the file header. Records longer
// than it are still returned whole.
func (r *Reader) SnapLen() uint32 {
	return r.snapLen
}
