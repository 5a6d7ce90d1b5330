package event

import (
	"fmt"
	"log"

	"fleettrack/internal/udp"
)

// datagramSender is the subset of udp.Sender the sink needs.
type datagramSender interface {
	Send(payload []byte) error
}

// UDPSink sends each event as one JSON datagram. Delivery is best effort;
// only local send errors are reported.
type UDPSink struct {
	device string
	conn   datagramSender
	close  func()
}

func NewUDPSink(dest, device string) (*UDPSink, error) {
	s, err := udp.NewSender(dest)
	if err != nil {
		return nil, fmt.Errorf("udp sink %s: %w", dest, err)
	}
	log.Printf("udp sink dest=%s", s.Dest())
	return &UDPSink{
		device: device,
		conn:   s,
		close:  func() { _ = s.Close() },
	}, nil
}

func (s *UDPSink) Send(ev Event) error {
	b, err := marshalPayload(s.device, ev)
	if err != nil {
		return fmt.Errorf("udp payload: %w", err)
	}
	if err := s.conn.Send(b); err != nil {
		return fmt.Errorf("udp send: %w", err)
	}
	return nil
}

func (s *UDPSink) Close() {
	if s == nil || s.close == nil {
		return
	}
	s.close()
}
