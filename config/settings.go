// Package config holds the command line settings of pcapkit.
package config

import (
	"fmt"
	"time"

	"github.com/vearne/pcapkit/size"
)

// MultiStringOption collects every value of a flag that may be repeated,
// e.g. -count a.pcap -count b.pcap
type MultiStringOption struct {
	Params *[]string
}

func (h *MultiStringOption) String() string {
	if h.Params == nil {
		return ""
	}
	return fmt.Sprint(*h.Params)
}

// Set gets called multiple times for each flag with same name
func (h *MultiStringOption) Set(value string) error {
	if h.Params == nil {
		return nil
	}

	*h.Params = append(*h.Params, value)
	return nil
}

// AppSettings mirrors the command line flags.
type AppSettings struct {
	ExitAfter time.Duration `json:"exit-after"`

	ListInterfaces bool `json:"list-interfaces"`

	// ######################## offline #######################
	Count      []string `json:"count"`
	InputFile  string   `json:"input-file"`
	OutputFile string   `json:"output-file"`

	// ######################## live ########################
	InputIface  string `json:"input-iface"`
	MaxPackets  int    `json:"max-packets"`
	Promiscuous bool   `json:"promisc"`
	TimeoutMs   int    `json:"timeout-ms"`

	// --- journal ---
	JournalDir string `json:"journal-dir"`
	// JournalMaxSize is the size of the journal before it gets rotated.
	JournalMaxSize size.Size `json:"journal-max-size"`
	// JournalMaxBackups is the maximum number of old journal files to retain.
	JournalMaxBackups int `json:"journal-max-backups"`
	// JournalMaxAge is the maximum number of days to retain old journal files.
	JournalMaxAge int `json:"journal-max-age"`

	// --- other ---
	LogLevel string `json:"log-level"`
}

// Mode picks the single action the settings ask for. Listing interfaces wins
// over counting, counting over duplication, duplication over live capture.
func (s *AppSettings) Mode() string {
	switch {
	case s.ListInterfaces:
		return ModeList
	case len(s.Count) > 0:
		return ModeCount
	case s.InputFile != "":
		return ModeDuplicate
	case s.InputIface != "":
		return ModeCapture
	}
	return ""
}

const (
	ModeList      = "list"
	ModeCount     = "count"
	ModeDuplicate = "duplicate"
	ModeCapture   = "capture"
)
