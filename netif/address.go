package netif

import (
	"encoding/json"
	"net"
	"net/netip"
)

// Family is the address family of an address record. The pcap enumeration
// only reports IPv4 and IPv6 address nodes and skips the others (AF_PACKET
// on Linux, for one), so FamilyUnix, FamilyLocal and FamilyUnknown never
// come out of ListInterfaces; an entry without an IP is FamilyUnspecified.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyIPv4
	FamilyIPv6
	FamilyUnix
	FamilyUnspecified
	FamilyLocal
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "AF_INET"
	case FamilyIPv6:
		return "AF_INET6"
	case FamilyUnix:
		return "AF_UNIX"
	case FamilyUnspecified:
		return "AF_UNSPEC"
	case FamilyLocal:
		return "AF_LOCAL"
	}
	return "UNKNOWN"
}

func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Resolvable reports whether addresses of this family have a numeric host
// form.
func (f Family) Resolvable() bool {
	return f == FamilyIPv4 || f == FamilyIPv6
}

// Address is one address of an interface. A zero netip.Addr means the
// corresponding field was not reported.
type Address struct {
	Family      Family
	Addr        netip.Addr
	Netmask     netip.Addr
	Broadcast   netip.Addr
	Destination netip.Addr
}

func optional(a netip.Addr) (string, bool) {
	if !a.IsValid() {
		return "", false
	}
	return a.String(), true
}

func (a Address) AddrString() (string, bool)        { return optional(a.Addr) }
func (a Address) NetmaskString() (string, bool)     { return optional(a.Netmask) }
func (a Address) BroadcastString() (string, bool)   { return optional(a.Broadcast) }
func (a Address) DestinationString() (string, bool) { return optional(a.Destination) }

func (a Address) MarshalJSON() ([]byte, error) {
	out := struct {
		Family      Family  `json:"family"`
		Addr        *string `json:"addr,omitempty"`
		Netmask     *string `json:"netmask,omitempty"`
		Broadcast   *string `json:"broadcast,omitempty"`
		Destination *string `json:"destination,omitempty"`
	}{Family: a.Family}
	out.Addr = optionalPtr(a.Addr)
	out.Netmask = optionalPtr(a.Netmask)
	out.Broadcast = optionalPtr(a.Broadcast)
	out.Destination = optionalPtr(a.Destination)
	return json.Marshal(out)
}

func optionalPtr(a netip.Addr) *string {
	s, ok := optional(a)
	if !ok {
		return nil
	}
	return &s
}

func familyOf(ip net.IP) Family {
	switch {
	case len(ip) == 0:
		return FamilyUnspecified
	case ip.To4() != nil:
		return FamilyIPv4
	case len(ip) == net.IPv6len:
		return FamilyIPv6
	}
	return FamilyUnknown
}

// hostAddr converts a native address to its numeric host form. Anything
// that is not a well formed IPv4 or IPv6 address yields the zero Addr.
func hostAddr(b []byte) netip.Addr {
	if len(b) != net.IPv4len && len(b) != net.IPv6len {
		return netip.Addr{}
	}
	a, ok := netip.AddrFromSlice(b)
	if !ok {
		return netip.Addr{}
	}
	return a.Unmap()
}
