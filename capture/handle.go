package capture

import (
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// Handle is an activated live capture handle.
type Handle interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
	Close()
}

// PcapStatProvider is implemented by handles that keep kernel counters.
type PcapStatProvider interface {
	Stats() (*pcap.Stats, error)
}

// Opener opens an interface for live capture.
type Opener interface {
	OpenLive(iface string, snaplen int, promisc bool, timeout time.Duration) (Handle, error)
}

// PcapOpener opens interfaces through libpcap.
type PcapOpener struct{}

// OpenLive returns an activated pcap handle. The inactive handle is always
// cleaned up, whether activation succeeded or not.
func (PcapOpener) OpenLive(iface string, snaplen int, promisc bool, timeout time.Duration) (Handle, error) {
	inactive, err := pcap.NewInactiveHandle(iface)
	if err != nil {
		return nil, fmt.Errorf("inactive handle error: %q, interface: %q", err, iface)
	}
	defer inactive.CleanUp()

	if err = inactive.SetPromisc(promisc); err != nil {
		return nil, fmt.Errorf("promiscuous mode error: %q, interface: %q", err, iface)
	}
	if err = inactive.SetSnapLen(snaplen); err != nil {
		return nil, fmt.Errorf("snapshot length error: %q, interface: %q", err, iface)
	}
	if err = inactive.SetTimeout(timeout); err != nil {
		return nil, fmt.Errorf("handle buffer timeout error: %q, interface: %q", err, iface)
	}
	handle, err := inactive.Activate()
	if err != nil {
		return nil, fmt.Errorf("PCAP Activate device error: %q, interface: %q", err, iface)
	}
	return handle, nil
}

// recoverable reports whether a read error only means nothing arrived in
// time, so the loop should poll again.
func recoverable(err error) bool {
	if enext, ok := err.(pcap.NextError); ok && enext == pcap.NextErrorTimeoutExpired {
		return true
	}
	if eno, ok := err.(syscall.Errno); ok && eno.Temporary() {
		return true
	}
	if enet, ok := err.(*net.OpError); ok && enet.Timeout() {
		return true
	}
	return false
}

// finished reports whether the source ran dry without failing.
func finished(err error) bool {
	return err == io.EOF
}
