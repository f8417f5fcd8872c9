package preview

import (
	"fmt"
	"net"
	"strconv"
)

// sendBufferBytes holds a few full-size previews in the kernel queue.
const sendBufferBytes = 4 * MaxDatagram

// UDPSender writes datagrams from an unconnected socket so an absent
// receiver never surfaces ICMP errors on later sends.
type UDPSender struct {
	conn *net.UDPConn
	dest *net.UDPAddr
}

// NewUDPSender resolves host:port and opens the sending socket.
func NewUDPSender(host string, port int) (*UDPSender, error) {
	dest, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("resolve preview destination: %w", err)
	}
	network := "udp4"
	if dest.IP.To4() == nil {
		network = "udp6"
	}
	conn, err := net.ListenUDP(network, nil)
	if err != nil {
		return nil, fmt.Errorf("open preview socket: %w", err)
	}
	if err := setSendBuffer(conn, sendBufferBytes); err != nil {
		conn.Close()
		return nil, fmt.Errorf("preview socket buffer: %w", err)
	}
	return &UDPSender{conn: conn, dest: dest}, nil
}

// Send writes payload as one datagram.
func (s *UDPSender) Send(payload []byte) error {
	_, err := s.conn.WriteToUDP(payload, s.dest)
	return err
}

// Addr returns the destination.
func (s *UDPSender) Addr() *net.UDPAddr {
	return s.dest
}

// Close closes the socket.
func (s *UDPSender) Close() error {
	return s.conn.Close()
}
