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

// WriterOptions fix the file header of a new capture file.
type WriterOptions struct {
	LinkType layers.LinkType `json:"link-type"`
	SnapLen  uint32          `json:"snap-len"`
}

func DefaultWriterOptions() WriterOptions {
	return WriterOptions{
		LinkType: consts.DefaultLinkType,
		SnapLen:  consts.MaxFrameSize,
	}
}

// dumpContext is the capture context of a writer. Closing it releases the
// dump handle, which flushes everything buffered so far.
type dumpContext struct {
	buf *bufio.Writer
	pw  *pcapgo.Writer
}

func (d *dumpContext) Close() error {
	if d.buf == nil {
		return nil
	}
	err := d.buf.Flush()
	d.buf = nil
	d.pw = nil
	return err
}

// Writer appends packets to a capture file with nanosecond timestamps.
// A Writer must not be used from several goroutines at once.
type Writer struct {
	guard   *guard.Guard
	opts    WriterOptions
	written int
}

func OpenWriter(dst Source) (*Writer, error) {
	return OpenWriterWith(dst, DefaultWriterOptions())
}

// OpenWriterWith opens dst and writes the file header described by opts.
// The writer always builds its own capture context.
func OpenWriterWith(dst Source, opts WriterOptions) (*Writer, error) {
	if opts.SnapLen == 0 {
		return nil, &pcaperr.ValidationError{Field: "snap-len", Value: opts.SnapLen, Reason: "must be > 0"}
	}
	g, err := dst.openWrite()
	if err != nil {
		return nil, err
	}
	f, err := g.File()
	if err != nil {
		return nil, err
	}

	buf := bufio.NewWriter(f)
	pw := pcapgo.NewWriterNanos(buf)
	if err = pw.WriteFileHeader(opts.SnapLen, opts.LinkType); err != nil {
		diag := err.Error()
		g.Close()
		return nil, &pcaperr.CaptureOpenError{Path: g.Name(), Diag: diag}
	}
	if err = g.Attach(&dumpContext{buf: buf, pw: pw}); err != nil {
		g.Close()
		return nil, err
	}

	slog.Debug("writer open, name:%v, linkType:%v, snapLen:%v", g.Name(), opts.LinkType, opts.SnapLen)
	return &Writer{guard: g, opts: opts}, nil
}

func (w *Writer) dump() (*dumpContext, error) {
	ctx, err := w.guard.Context()
	if err != nil {
		return nil, err
	}
	d, ok := ctx.(*dumpContext)
	if !ok || d.buf == nil {
		return nil, &pcaperr.ClosedError{Name: w.guard.Name()}
	}
	return d, nil
}

// WriteRaw appends b verbatim, without any record framing.
func (w *Writer) WriteRaw(b []byte) (int, error) {
	d, err := w.dump()
	if err != nil {
		return 0, err
	}
	n, err := d.buf.Write(b)
	if err != nil {
		return n, &pcaperr.IOError{Op: "write", Path: w.guard.Name(), Err: err}
	}
	stats.Add("raw_bytes_written", int64(n))
	return n, nil
}

// WritePacket dumps one packet, keeping its timestamp and lengths.
func (w *Writer) WritePacket(p model.Packet) error {
	d, err := w.dump()
	if err != nil {
		return err
	}
	return w.writePacket(d, p)
}

func (w *Writer) writePacket(d *dumpContext, p model.Packet) error {
	if p.CaptureLength != len(p.Data) {
		return &pcaperr.ValidationError{Field: "capture-length", Value: p.CaptureLength,
			Reason: "does not match the data length"}
	}
	if p.CaptureLength > p.Length {
		return &pcaperr.ValidationError{Field: "capture-length", Value: p.CaptureLength,
			Reason: "exceeds the original length"}
	}
	if err := d.pw.WritePacket(p.CaptureInfo(), p.Data); err != nil {
		return &pcaperr.IOError{Op: "write", Path: w.guard.Name(), Err: err}
	}
	w.written++
	stats.Add("packets_written", 1)
	return nil
}

// WriteFrom streams every remaining packet of r into w, one at a time, and
// returns how many were copied. r is borrowed: it stays open and remains
// owned by the caller.
func (w *Writer) WriteFrom(r *Reader) (int, error) {
	d, err := w.dump()
	if err != nil {
		return 0, err
	}
	if r == nil {
		return 0, &pcaperr.SourceClosedError{Name: "<nil>"}
	}
	if _, err = r.source(); err != nil {
		return 0, &pcaperr.SourceClosedError{Name: r.Name()}
	}

	n := 0
	for {
		p, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}
		if err = w.writePacket(d, p); err != nil {
			return n, err
		}
		n++
	}
	stats.Add("packets_duplicated", int64(n))
	slog.Info("duplicated %d packets, from:%v, to:%v", n, r.Name(), w.Name())
	return n, nil
}

// Flush pushes buffered packets down to the file.
func (w *Writer) Flush() error {
	d, err := w.dump()
	if err != nil {
		return err
	}
	if err = d.buf.Flush(); err != nil {
		return &pcaperr.IOError{Op: "flush", Path: w.guard.Name(), Err: err}
	}
	return nil
}

// Close releases the dump handle, the capture context and the file, in that
// order. It is safe to call more than once.
func (w *Writer) Close() error {
	return w.guard.Close()
}

func (w *Writer) IsClosed() bool {
	return w.guard.IsClosed()
}

func (w *Writer) Fd() (uintptr, error) {
	return w.guard.Fd()
}

func (w *Writer) Name() string {
	return w.guard.Name()
}

func (w *Writer) Mode() string {
	return consts.WriterMode
}

func (w *Writer) Options() WriterOptions {
	return w.opts
}

// Written returns the number of packets dumped so far.
func (w *Writer) Written() int {
	return w.written
}
