package capture

import (
	"github.com/vearne/pcapkit/consts"
	"github.com/vearne/pcapkit/pcaperr"
)

// CaptureParameters configure one live capture run.
type CaptureParameters struct {
	InterfaceName  string `json:"input-iface"`
	OutputFilename string `json:"output-file"`
	MaxPackets     int    `json:"max-packets"`
	Promiscuous    bool   `json:"promisc"`
	TimeoutMs      int    `json:"timeout-ms"`
}

type ParamOption func(*CaptureParameters)

func WithPromiscuous(on bool) ParamOption {
	return func(p *CaptureParameters) {
		p.Promiscuous = on
	}
}

func WithTimeoutMs(ms int) ParamOption {
	return func(p *CaptureParameters) {
		p.TimeoutMs = ms
	}
}

// NewParameters builds validated parameters. Promiscuous mode is off and the
// read timeout is consts.DefaultTimeoutMs unless an option says otherwise.
func NewParameters(iface, output string, maxPackets int, opts ...ParamOption) (CaptureParameters, error) {
	p := CaptureParameters{
		InterfaceName:  iface,
		OutputFilename: output,
		MaxPackets:     maxPackets,
		TimeoutMs:      consts.DefaultTimeoutMs,
	}
	for _, opt := range opts {
		opt(&p)
	}
	if err := p.Validate(); err != nil {
		return CaptureParameters{}, err
	}
	return p, nil
}

func (p CaptureParameters) Validate() error {
	if p.InterfaceName == "" {
		return &pcaperr.ValidationError{Field: "interface", Value: `""`, Reason: "required"}
	}
	if p.OutputFilename == "" {
		return &pcaperr.ValidationError{Field: "output", Value: `""`, Reason: "required"}
	}
	if p.MaxPackets <= 0 {
		return &pcaperr.ValidationError{Field: "max-packets", Value: p.MaxPackets, Reason: "must be > 0"}
	}
	if p.TimeoutMs <= 0 {
		return &pcaperr.ValidationError{Field: "timeout-ms", Value: p.TimeoutMs, Reason: "must be > 0"}
	}
	return nil
}

// SnapLength is not configurable: every frame is captured whole.
func (p CaptureParameters) SnapLength() int {
	return consts.MaxFrameSize
}
