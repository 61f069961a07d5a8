package dsa

import (
	"fmt"
	"strings"
)

// TagProtocol identifies the frame tagging format a switch uses on its
// uplink.
type TagProtocol string

const (
	TagProtoNone    TagProtocol = "none"
	TagProtoDSA     TagProtocol = "dsa"
	TagProtoEDSA    TagProtocol = "edsa"
	TagProtoTrailer TagProtocol = "trailer"
	TagProtoBRCM    TagProtocol = "brcm"
	TagProtoQCA     TagProtocol = "qca"
	TagProtoMTK     TagProtocol = "mtk"
	TagProtoLAN9303 TagProtocol = "lan9303"
)

// ParseTagProtocol parses a protocol name, case-insensitively.
func ParseTagProtocol(s string) (TagProtocol, error) {
	switch p := TagProtocol(strings.ToLower(strings.TrimSpace(s))); p {
	case TagProtoNone, TagProtoDSA, TagProtoEDSA, TagProtoTrailer,
		TagProtoBRCM, TagProtoQCA, TagProtoMTK, TagProtoLAN9303:
		return p, nil
	case "":
		return TagProtoNone, nil
	default:
		return "", fmt.Errorf("unknown tag protocol %q", s)
	}
}

func (p TagProtocol) String() string { return string(p) }

// RcvFunc receives a tagged frame from the uplink device and returns
// the untagged frame together with the member and port it came from.
type RcvFunc func(frame []byte, dev *NetDevice) (payload []byte, member uint32, port int, err error)

// TagOps are the data-plane operations of one tagging protocol.
type TagOps struct {
	Protocol TagProtocol
	Rcv      RcvFunc
}
