package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"testing"
)

func TestLogBuffer_SplitsAndKeepsPartial(t *testing.T) {
	b := NewLogBuffer(10)
	_, _ = b.Write([]byte("one\ntw"))
	_, _ = b.Write([]byte("o\r\n\nthree"))

	lines, dropped := b.Snapshot(0, "")
	if strings.Join(lines, "|") != "one|two" || dropped != 0 {
		t.Fatalf("lines=%q dropped=%d", lines, dropped)
	}

	_, _ = b.Write([]byte("\n"))
	lines, _ = b.Snapshot(0, "")
	if strings.Join(lines, "|") != "one|two|three" {
		t.Fatalf("lines=%q", lines)
	}
}

func TestLogBuffer_EvictsOldest(t *testing.T) {
	b := NewLogBuffer(3)
	for i := 0; i < 5; i++ {
		_, _ = fmt.Fprintf(b, "line %d\n", i)
	}
	lines, dropped := b.Snapshot(2, "")
	if strings.Join(lines, "|") != "line 3|line 4" || dropped != 2 {
		t.Fatalf("lines=%q dropped=%d", lines, dropped)
	}
}

func TestLogBuffer_AsLogOutput(t *testing.T) {
	b := NewLogBuffer(10)
	l := log.New(b, "", 0)
	l.Printf("gps enabled source=%s", "sim")

	rr := do(t, Handler(Options{Logs: b}), http.MethodGet, "/api/logs?tail=5", "")
	var got LogsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Lines) != 1 || got.Lines[0] != "gps enabled source=sim" {
		t.Fatalf("lines=%q", got.Lines)
	}
}

func TestLogsEndpoint_TextAndValidation(t *testing.T) {
	b := NewLogBuffer(1)
	_, _ = b.Write([]byte("a\nb\n"))
	h := Handler(Options{Logs: b})

	rr := do(t, h, http.MethodGet, "/api/logs?format=text", "")
	if rr.Body.String() != "[dropped=1]\nb\n" {
		t.Fatalf("body=%q", rr.Body.String())
	}
	if rr := do(t, h, http.MethodGet, "/api/logs?tail=0", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", rr.Code)
	}
}

func TestLogBuffer_Match(t *testing.T) {
	b := NewLogBuffer(10)
	for _, l := range []string{"gps enabled", "http listening", "gps restart", "props saved", "gps stopped"} {
		_, _ = fmt.Fprintln(b, l)
	}
	lines, _ := b.Snapshot(2, "gps")
	if strings.Join(lines, "|") != "gps restart|gps stopped" {
		t.Fatalf("lines=%q", lines)
	}

	rr := do(t, Handler(Options{Logs: b}), http.MethodGet, "/api/logs?match=props&format=text", "")
	if rr.Body.String() != "props saved\n" {
		t.Fatalf("body=%q", rr.Body.String())
	}
}
