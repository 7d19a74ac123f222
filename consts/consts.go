package consts

import "github.com/google/gopacket/layers"

var (
	Version   = "v0.1.0"
	BuildTime = "unknown"
	GitTag    = "unknown"
)

const (
	// MaxFrameSize is the snap length used for every capture context.
	MaxFrameSize = 65535
	// MaxRecordSize bounds a single record read back from a capture file.
	// Some writers put a small snap length in the header and then store
	// longer records; those are accepted up to this size.
	MaxRecordSize = 262144
	// DefaultLinkType is written into the header of files produced by a writer
	// that was not told otherwise.
	DefaultLinkType = layers.LinkTypeEthernet
	// DefaultTimeoutMs bounds a single live read.
	DefaultTimeoutMs = 1000
	// StdStream names the process's standard input or output.
	StdStream = "-"
	// WriterMode is the only mode a writer opens its destination with.
	WriterMode = "wb"
)
