// Package udp sends datagrams to a fixed destination.
package udp

import (
	"fmt"
	"net"
)

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)

type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

// MaxPayload is the largest datagram Send accepts.
const MaxPayload = 1472

type Sender struct {
	dest string
	conn udpConn
}

func NewSender(dest string) (*Sender, error) {
	return newSender(dest, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		// DialUDP selects a suitable local address automatically.
		return net.DialUDP(network, laddr, raddr)
	})
}

func newSender(dest string, resolve resolveFunc, dial dialFunc) (*Sender, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}
	return &Sender{dest: dest, conn: conn}, nil
}

func (s *Sender) Dest() string { return s.dest }

func (s *Sender) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if len(payload) > MaxPayload {
		return fmt.Errorf("udp payload %d bytes exceeds %d", len(payload), MaxPayload)
	}
	_, err := s.conn.Write(payload)
	return err
}

func (s *Sender) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
