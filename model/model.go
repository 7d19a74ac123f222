package model

import (
	"time"

	"github.com/google/gopacket"
)

// Packet is one captured frame. It lives only for the iteration that
// produced it.
type Packet struct {
	Timestamp     time.Time
	CaptureLength int
	// Length is the original length on the wire, never less than CaptureLength.
	Length int
	Data   []byte
}

func FromCaptureInfo(data []byte, ci gopacket.CaptureInfo) Packet {
	return Packet{
		Timestamp:     ci.Timestamp,
		CaptureLength: ci.CaptureLength,
		Length:        ci.Length,
		Data:          data,
	}
}

func (p Packet) CaptureInfo() gopacket.CaptureInfo {
	return gopacket.CaptureInfo{
		Timestamp:     p.Timestamp,
		CaptureLength: p.CaptureLength,
		Length:        p.Length,
	}
}

// Record is one journal entry describing a finished run.
type Record struct {
	ID          string    `json:"id"`
	Op          string    `json:"op"`
	Source      string    `json:"source"`
	Destination string    `json:"destination,omitempty"`
	Packets     int       `json:"packets"`
	Started     time.Time `json:"started"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	Error       string    `json:"error,omitempty"`
}
