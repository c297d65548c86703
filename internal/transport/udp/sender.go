// Package udp sends spectrum snapshots as binary datagrams.
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"visualizer/internal/log"
	"visualizer/internal/spectrum"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("UDP sender is closed")

// UDPSender handles sending data packets over UDP.
type UDPSender struct {
	conn   *net.UDPConn
	mu     sync.Mutex // Protects conn during Close
	closed bool
	log    log.Logger

	packet []byte // Reusable packet buffer; guarded by mu.
}

// NewUDPSender creates a new UDPSender targeting the specified address.
// The address should be in the format "host:port", e.g., "127.0.0.1:9090".
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}

	// We don't need to bind to a specific local port for sending,
	// so we use nil for the local address in DialUDP.
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}

	l := log.Named("udp")
	l.Infof("sending spectra to %s", conn.RemoteAddr())

	return &UDPSender{
		conn: conn,
		log:  l,
	}, nil
}

// Name returns "udp".
func (s *UDPSender) Name() string { return "udp" }

// Send encodes snap as one datagram and transmits it.
// It is safe for concurrent use, although typically called sequentially by the publisher.
func (s *UDPSender) Send(snap *spectrum.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	packet, err := AppendPacket(s.packet[:0], snap)
	if err != nil {
		return err
	}
	s.packet = packet

	// UDP Write is generally fast but can block under certain OS/network conditions.
	if _, err := s.conn.Write(packet); err != nil {
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	return nil
}

// Close closes the underlying UDP connection.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil // Already closed
	}

	s.closed = true
	if s.conn != nil {
		s.log.Debugf("closing connection to %s", s.conn.RemoteAddr())
		err := s.conn.Close()
		s.conn = nil // Prevent further use
		if err != nil {
			return fmt.Errorf("failed to close UDP connection: %w", err)
		}
	}
	return nil
}
