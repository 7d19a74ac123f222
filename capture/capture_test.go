package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vearne/pcapkit/guard"
	"github.com/vearne/pcapkit/pcaperr"
	"github.com/vearne/pcapkit/pcapfile"
)

// step is one scripted result of fakeHandle.ReadPacketData. A nil step
// yields a fresh frame.
type step error

type fakeHandle struct {
	script []step
	reads  int
	frames int
	closed bool
}

func (h *fakeHandle) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	h.reads++
	if len(h.script) > 0 {
		s := h.script[0]
		h.script = h.script[1:]
		if s != nil {
			return nil, gopacket.CaptureInfo{}, s
		}
	}
	h.frames++
	data := []byte(fmt.Sprintf("frame-%04d", h.frames))
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Unix(1700000000, int64(h.frames)),
		CaptureLength: len(data),
		Length:        len(data) + 20,
	}
	return data, ci, nil
}

func (h *fakeHandle) LinkType() layers.LinkType { return layers.LinkTypeLinuxSLL }

func (h *fakeHandle) Close() { h.closed = true }

func (h *fakeHandle) Stats() (*pcap.Stats, error) {
	return &pcap.Stats{PacketsReceived: h.frames}, nil
}

type fakeOpener struct {
	handle *fakeHandle
	err    error
	calls  int
	iface  string
	snap   int
}

func (o *fakeOpener) OpenLive(iface string, snaplen int, promisc bool, timeout time.Duration) (Handle, error) {
	o.calls++
	o.iface = iface
	o.snap = snaplen
	if o.err != nil {
		return nil, o.err
	}
	return o.handle, nil
}

func newEngine(t *testing.T, o Opener, output string, max int) *Engine {
	t.Helper()
	params, err := NewParameters("eth9", output, max)
	require.NoError(t, err)
	e, err := NewEngine(params, WithOpener(o), WithProgressInterval(time.Millisecond))
	require.NoError(t, err)
	return e
}

func countPackets(t *testing.T, path string) int {
	t.Helper()
	r, err := pcapfile.OpenReader(pcapfile.Path(path))
	require.NoError(t, err)
	defer r.Close()
	n, err := r.Count()
	require.NoError(t, err)
	return n
}

func TestNewParameters(t *testing.T) {
	p, err := NewParameters("eth0", "out.pcap", 10)
	require.NoError(t, err)
	assert.False(t, p.Promiscuous)
	assert.Equal(t, 1000, p.TimeoutMs)
	assert.Equal(t, 65535, p.SnapLength())

	p, err = NewParameters("eth0", "out.pcap", 1, WithPromiscuous(true), WithTimeoutMs(1))
	require.NoError(t, err)
	assert.True(t, p.Promiscuous)
	assert.Equal(t, 1, p.TimeoutMs)

	cases := []struct {
		iface   string
		output  string
		max     int
		timeout int
	}{
		{"eth0", "out.pcap", 0, 1000},
		{"eth0", "out.pcap", -1, 1000},
		{"eth0", "out.pcap", 10, 0},
		{"eth0", "out.pcap", 10, -5},
		{"", "out.pcap", 10, 1000},
		{"eth0", "", 10, 1000},
	}
	for _, c := range cases {
		_, err := NewParameters(c.iface, c.output, c.max, WithTimeoutMs(c.timeout))
		assert.True(t, pcaperr.IsValidation(err), "%+v", c)
	}
}

func TestNewEngineRejectsInvalidParameters(t *testing.T) {
	o := &fakeOpener{handle: &fakeHandle{}}
	before := guard.Live()
	_, err := NewEngine(CaptureParameters{InterfaceName: "eth0", OutputFilename: "x.pcap", MaxPackets: 0, TimeoutMs: 1000},
		WithOpener(o))
	assert.True(t, pcaperr.IsValidation(err))
	assert.Equal(t, 0, o.calls)
	assert.Equal(t, before, guard.Live())
}

func TestStartStopsAtMaxPackets(t *testing.T) {
	out := filepath.Join(t.TempDir(), "live.pcap")
	h := &fakeHandle{}
	o := &fakeOpener{handle: h}
	e := newEngine(t, o, out, 3)
	assert.Equal(t, StateConfigured, e.State())

	res, err := e.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Packets)
	assert.Equal(t, 3, h.reads)
	assert.True(t, h.closed)
	assert.Equal(t, StateFinished, e.State())
	assert.Equal(t, "eth9", o.iface)
	assert.Equal(t, 65535, o.snap)
	assert.False(t, res.Finished.Before(res.Started))

	assert.Equal(t, 3, countPackets(t, out))
	r, err := pcapfile.OpenReader(pcapfile.Path(out))
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, layers.LinkTypeLinuxSLL, r.LinkType())
	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "frame-0001", string(first.Data))
	assert.Equal(t, 30, first.Length)
}

func TestStartRetriesTimeouts(t *testing.T) {
	out := filepath.Join(t.TempDir(), "timeouts.pcap")
	h := &fakeHandle{script: []step{pcap.NextErrorTimeoutExpired, nil, pcap.NextErrorTimeoutExpired, pcap.NextErrorTimeoutExpired}}
	e := newEngine(t, &fakeOpener{handle: h}, out, 2)

	res, err := e.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Packets)
	assert.Equal(t, 5, h.reads)
	assert.Equal(t, 2, countPackets(t, out))
}

func TestStartSourceExhausted(t *testing.T) {
	out := filepath.Join(t.TempDir(), "eof.pcap")
	h := &fakeHandle{script: []step{nil, io.EOF}}
	e := newEngine(t, &fakeOpener{handle: h}, out, 100)

	res, err := e.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Packets)
	assert.Equal(t, StateFinished, e.State())
}

func TestStartInterfaceOpenError(t *testing.T) {
	out := filepath.Join(t.TempDir(), "never.pcap")
	o := &fakeOpener{err: errors.New("eth9: No such device exists")}
	e := newEngine(t, o, out, 3)

	before := guard.Live()
	_, err := e.Start(context.Background())
	var openErr *pcaperr.InterfaceOpenError
	require.True(t, errors.As(err, &openErr))
	assert.Equal(t, "eth9", openErr.Interface)
	assert.Contains(t, openErr.Diag, "No such device")
	assert.Equal(t, StateFailed, e.State())
	assert.Equal(t, before, guard.Live())

	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err), "no output file may be created")
}

func TestStartOutputOpenError(t *testing.T) {
	out := filepath.Join(t.TempDir(), "missing", "out.pcap")
	h := &fakeHandle{}
	e := newEngine(t, &fakeOpener{handle: h}, out, 3)

	_, err := e.Start(context.Background())
	var outErr *pcaperr.OutputOpenError
	require.True(t, errors.As(err, &outErr))
	assert.Equal(t, out, outErr.Path)
	assert.True(t, pcaperr.IsIO(err))
	assert.True(t, h.closed, "the live handle is released when the output cannot be opened")
	assert.Equal(t, 0, h.reads)
}

func TestStartLoopErrorKeepsPartialOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "partial.pcap")
	down := errors.New("The interface went down")
	h := &fakeHandle{script: []step{nil, nil, down}}
	e := newEngine(t, &fakeOpener{handle: h}, out, 10)

	res, err := e.Start(context.Background())
	var loopErr *pcaperr.CaptureLoopError
	require.True(t, errors.As(err, &loopErr))
	assert.Equal(t, "eth9", loopErr.Interface)
	assert.Equal(t, 2, loopErr.Dumped)
	assert.True(t, errors.Is(err, down))
	assert.Equal(t, 2, res.Packets)
	assert.Equal(t, StateFailed, e.State())
	assert.True(t, h.closed)

	assert.Equal(t, 2, countPackets(t, out))
}

func TestStartCancelled(t *testing.T) {
	out := filepath.Join(t.TempDir(), "cancel.pcap")
	h := &fakeHandle{}
	e := newEngine(t, &fakeOpener{handle: h}, out, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Start(ctx)
	var loopErr *pcaperr.CaptureLoopError
	require.True(t, errors.As(err, &loopErr))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StateFailed, e.State())
	assert.Equal(t, 0, countPackets(t, out))
}

func TestStartTwice(t *testing.T) {
	out := filepath.Join(t.TempDir(), "twice.pcap")
	e := newEngine(t, &fakeOpener{handle: &fakeHandle{}}, out, 1)

	_, err := e.Start(context.Background())
	require.NoError(t, err)
	_, err = e.Start(context.Background())
	var again *pcaperr.AlreadyStartedError
	require.True(t, errors.As(err, &again))
	assert.Equal(t, StateFinished, e.State())
}

func TestStartBackground(t *testing.T) {
	out := filepath.Join(t.TempDir(), "bg.pcap")
	e := newEngine(t, &fakeOpener{handle: &fakeHandle{}}, out, 4)

	select {
	case err, ok := <-e.StartBackground(context.Background()):
		assert.NoError(t, err)
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("capture did not finish")
	}
	assert.Equal(t, 4, countPackets(t, out))

	e = newEngine(t, &fakeOpener{err: errors.New("boom")}, out, 4)
	err := <-e.StartBackground(context.Background())
	assert.Error(t, err)
}
