// Package netif enumerates the host's network interfaces, the way the capture
// library sees them, into an ordered and queryable structure.
package netif

import (
	"bytes"
	"encoding/json"
	"expvar"

	"github.com/google/gopacket/pcap"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/vearne/pcapkit/pcaperr"
	slog "github.com/vearne/simplelog"
)

var stats *expvar.Map

func init() {
	stats = expvar.NewMap("netif")
	stats.Init()
}

// Interface is one network interface. MTU and HardwareAddr are filled in
// from the OS interface table when it is available.
type Interface struct {
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Flags        FlagSet   `json:"flags"`
	RawFlags     uint32    `json:"flags_int"`
	Addresses    []Address `json:"addresses"`
	MTU          int       `json:"mtu,omitempty"`
	HardwareAddr string    `json:"hardware_addr,omitempty"`
}

func (i *Interface) IsLoopback() bool {
	return i.Flags.Has(FlagLoopback)
}

// Interfaces maps interface names to records and remembers the order in
// which they were enumerated.
type Interfaces struct {
	names  []string
	byName map[string]*Interface
}

func newInterfaces(n int) *Interfaces {
	return &Interfaces{
		names:  make([]string, 0, n),
		byName: make(map[string]*Interface, n),
	}
}

// put stores ifi under its name. A duplicate name replaces the earlier
// record but keeps its position.
func (s *Interfaces) put(ifi *Interface) {
	if _, ok := s.byName[ifi.Name]; !ok {
		s.names = append(s.names, ifi.Name)
	}
	s.byName[ifi.Name] = ifi
}

func (s *Interfaces) Len() int {
	return len(s.names)
}

func (s *Interfaces) Names() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

func (s *Interfaces) Get(name string) (*Interface, bool) {
	ifi, ok := s.byName[name]
	return ifi, ok
}

// All returns the records in enumeration order.
func (s *Interfaces) All() []*Interface {
	all := make([]*Interface, 0, len(s.names))
	for _, name := range s.names {
		all = append(all, s.byName[name])
	}
	return all
}

// MarshalJSON renders an object whose keys follow enumeration order.
func (s *Interfaces) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.byName[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Enumerator lists devices the way pcap.FindAllDevs does. Implementations
// must release any native list they allocate before returning, on success
// and on failure alike.
type Enumerator func() ([]pcap.Interface, error)

// SystemLister lists the OS interface table.
type SystemLister func() ([]psnet.InterfaceStat, error)

type Option func(*Directory)

func WithEnumerator(e Enumerator) Option {
	return func(d *Directory) {
		d.enumerate = e
	}
}

// WithSystemInterfaces sets the source of MTU and hardware addresses. A nil
// lister turns the enrichment off.
func WithSystemInterfaces(l SystemLister) Option {
	return func(d *Directory) {
		d.system = l
	}
}

type Directory struct {
	enumerate Enumerator
	system    SystemLister
}

func NewDirectory(opts ...Option) *Directory {
	d := &Directory{
		enumerate: pcap.FindAllDevs,
		system: func() ([]psnet.InterfaceStat, error) {
			return psnet.Interfaces()
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ListInterfaces runs the enumeration once and copies every interface and
// address it reports into owned records.
func (d *Directory) ListInterfaces() (*Interfaces, error) {
	devs, err := d.enumerate()
	if err != nil {
		stats.Add("enumeration_failed", 1)
		return nil, &pcaperr.EnumerationError{Diag: err.Error()}
	}

	result := newInterfaces(len(devs))
	for _, dev := range devs {
		ifi := &Interface{
			Name:        dev.Name,
			Description: dev.Description,
			Flags:       DecodeFlags(dev.Flags),
			RawFlags:    dev.Flags,
			Addresses:   make([]Address, 0, len(dev.Addresses)),
		}
		for _, a := range dev.Addresses {
			ifi.Addresses = append(ifi.Addresses, newAddress(a))
		}
		result.put(ifi)
	}
	d.enrich(result)

	stats.Add("enumerations", 1)
	slog.Debug("list interfaces, count:%v", result.Len())
	return result, nil
}

func newAddress(a pcap.InterfaceAddress) Address {
	addr := Address{Family: familyOf(a.IP)}
	if !addr.Family.Resolvable() {
		return addr
	}
	addr.Addr = hostAddr(a.IP)
	addr.Netmask = hostAddr(a.Netmask)
	addr.Broadcast = hostAddr(a.Broadaddr)
	addr.Destination = hostAddr(a.P2P)
	return addr
}

// enrich is best effort: the listing stays valid without it.
func (d *Directory) enrich(ifs *Interfaces) {
	if d.system == nil || ifs.Len() == 0 {
		return
	}
	table, err := d.system()
	if err != nil {
		slog.Warn("read system interfaces error:%v", err)
		return
	}
	for _, st := range table {
		ifi, ok := ifs.Get(st.Name)
		if !ok {
			continue
		}
		ifi.MTU = st.MTU
		ifi.HardwareAddr = st.HardwareAddr
	}
}
