//go:build linux

package txsock

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// AFPacketSender is a LinkSender backed by an AF_PACKET SOCK_RAW socket
// bound to one interface, for PacketList.SendAllLink.
type AFPacketSender struct {
	fd    int
	index int
}

// NewAFPacketSender opens a raw AF_PACKET socket on ifaceIndex.
func NewAFPacketSender(ifaceIndex int) (*AFPacketSender, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("txsock: open AF_PACKET socket: %w", err)
	}
	addr := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  ifaceIndex,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("txsock: bind AF_PACKET socket: %w", err)
	}
	return &AFPacketSender{fd: fd, index: ifaceIndex}, nil
}

// WriteFrame sends a full Ethernet frame as-is.
func (s *AFPacketSender) WriteFrame(frame []byte) error {
	addr := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  s.index,
	}
	return unix.Sendto(s.fd, frame, 0, addr)
}

// Close releases the underlying socket.
func (s *AFPacketSender) Close() error { return unix.Close(s.fd) }

func htons(v int) uint16 {
	return uint16(v<<8&0xff00 | v>>8&0x00ff)
}
