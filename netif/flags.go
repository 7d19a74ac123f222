package netif

import "strings"

// Flag is one interface status bit as reported by the capture library.
type Flag uint32

const (
	FlagLoopback Flag = 0x00000001
	FlagUp       Flag = 0x00000002
	FlagRunning  Flag = 0x00000004
	FlagWireless Flag = 0x00000008
)

// decode order
var knownFlags = []Flag{FlagLoopback, FlagUp, FlagRunning, FlagWireless}

func (f Flag) String() string {
	switch f {
	case FlagLoopback:
		return "LOOPBACK"
	case FlagUp:
		return "UP"
	case FlagRunning:
		return "RUNNING"
	case FlagWireless:
		return "WIRELESS"
	}
	return "UNKNOWN"
}

func (f Flag) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// FlagSet is the decoded form of a raw flag word. Its elements always come
// in the order LOOPBACK, UP, RUNNING, WIRELESS.
type FlagSet []Flag

// DecodeFlags keeps the known bits of raw. Bits it does not know about are
// dropped silently.
func DecodeFlags(raw uint32) FlagSet {
	set := make(FlagSet, 0, len(knownFlags))
	for _, f := range knownFlags {
		if raw&uint32(f) != 0 {
			set = append(set, f)
		}
	}
	return set
}

func (s FlagSet) Has(f Flag) bool {
	for _, x := range s {
		if x == f {
			return true
		}
	}
	return false
}

func (s FlagSet) Strings() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.String()
	}
	return names
}

func (s FlagSet) String() string {
	return strings.Join(s.Strings(), "|")
}
