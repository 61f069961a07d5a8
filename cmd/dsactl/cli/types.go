package cli

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// TreeID wraps a uint32 tree id with hex support.
type TreeID struct {
	Value uint32
}

// ParseTreeID parses a tree id from string, supporting hex (0x) prefix.
func ParseTreeID(s string) (TreeID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TreeID{}, fmt.Errorf("tree ID cannot be empty")
	}

	var (
		val uint64
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		val, err = strconv.ParseUint(s[2:], 16, 32)
	} else {
		val, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil {
		return TreeID{}, fmt.Errorf("invalid tree ID %q: %w", s, err)
	}
	return TreeID{Value: uint32(val)}, nil
}

// MACAddr is an EUI-48 hardware address.
type MACAddr struct {
	Addr net.HardwareAddr
}

// ParseMACAddr parses an EUI-48 address in any form net.ParseMAC
// accepts.
func ParseMACAddr(s string) (MACAddr, error) {
	mac, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil {
		return MACAddr{}, err
	}
	if len(mac) != 6 {
		return MACAddr{}, fmt.Errorf("%q is not an EUI-48 address", s)
	}
	return MACAddr{Addr: mac}, nil
}

func (m MACAddr) String() string { return m.Addr.String() }
