package event

import (
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"
)

type fakeDatagrams struct {
	sent [][]byte
	err  error
}

func (f *fakeDatagrams) Send(p []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, p)
	return nil
}

func TestUDPSink_SendsJSONDatagram(t *testing.T) {
	conn := &fakeDatagrams{}
	s := &UDPSink{device: "van-2", conn: conn}

	f := fixAt(1_700_000_100)
	f.Status = uint16(CodeMotionStart)
	if err := s.Send(Event{Seq: 9, Priority: PriorityHigh, Fix: f}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(conn.sent) != 1 {
		t.Fatalf("sent=%d want 1", len(conn.sent))
	}
	var got Payload
	if err := json.Unmarshal(conn.sent[0], &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.Device != "van-2" || got.Seq != 9 || got.Name != CodeMotionStart.String() || got.Priority != "high" {
		t.Fatalf("payload=%+v", got)
	}
}

func TestUDPSink_PropagatesSendError(t *testing.T) {
	boom := errors.New("boom")
	s := &UDPSink{conn: &fakeDatagrams{err: boom}}
	if err := s.Send(Event{Fix: fixAt(1)}); !errors.Is(err, boom) {
		t.Fatalf("err=%v want %v", err, boom)
	}
}

func TestUDPSink_Loopback(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("udp listen unavailable: %v", err)
	}
	defer pc.Close()

	s, err := NewUDPSink(pc.LocalAddr().String(), "bus-1")
	if err != nil {
		t.Fatalf("NewUDPSink: %v", err)
	}
	defer s.Close()

	f := fixAt(1_700_000_200)
	f.Status = uint16(CodeLocation)
	if err := s.Send(Event{Seq: 1, Priority: PriorityLow, Fix: f}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	var got Payload
	if err := json.Unmarshal(buf[:n], &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.Device != "bus-1" || got.Fix.Timestamp != 1_700_000_200 {
		t.Fatalf("payload=%+v", got)
	}
}
