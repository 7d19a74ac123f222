package pcapfile

import (
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/require"
	"github.com/vearne/pcapkit/model"
)

func udpFrame(t *testing.T, i int) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP{10, 0, 0, 1},
		DstIP:    net.IP{10, 0, 0, 2},
	}
	udp := &layers.UDP{SrcPort: 40000, DstPort: layers.UDPPort(5000 + i)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	payload := gopacket.Payload([]byte(fmt.Sprintf("payload-%d", i)))
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, payload))
	return buf.Bytes()
}

// writeCapture produces a capture of n UDP frames the way other pcap tools
// would, with either nanosecond or microsecond timestamps.
func writeCapture(t *testing.T, path string, n int, nanos bool) []model.Packet {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	var w *pcapgo.Writer
	if nanos {
		w = pcapgo.NewWriterNanos(f)
	} else {
		w = pcapgo.NewWriter(f)
	}
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))

	packets := make([]model.Packet, 0, n)
	for i := 0; i < n; i++ {
		data := udpFrame(t, i)
		nsec := int64(i)*1001 + 7
		if !nanos {
			nsec = int64(i) * 1000
		}
		p := model.Packet{
			Timestamp:     time.Unix(1700000000+int64(i), nsec).UTC(),
			CaptureLength: len(data),
			Length:        len(data) + 4,
			Data:          data,
		}
		require.NoError(t, w.WritePacket(p.CaptureInfo(), p.Data))
		packets = append(packets, p)
	}
	return packets
}

func assertSamePackets(t *testing.T, want []model.Packet, r *Reader) {
	t.Helper()
	for i, w := range want {
		got, err := r.Next()
		require.NoError(t, err, "packet %d", i)
		require.True(t, w.Timestamp.Equal(got.Timestamp), "packet %d: %v != %v", i, w.Timestamp, got.Timestamp)
		require.Equal(t, w.CaptureLength, got.CaptureLength)
		require.Equal(t, w.Length, got.Length)
		require.Equal(t, w.Data, got.Data)
	}
}
