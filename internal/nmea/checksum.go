package nmea

import (
	"fmt"
	"strconv"
	"strings"
)

// Checksum is the XOR of every byte of payload (the text between '$' and '*').
func Checksum(payload string) byte {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return ck
}

// AppendChecksum frames payload as "$payload*HH". A leading '$' is tolerated.
func AppendChecksum(payload string) string {
	payload = strings.TrimPrefix(payload, "$")
	return fmt.Sprintf("$%s*%02X", payload, Checksum(payload))
}

// ValidChecksum reports whether line carries a correct two-digit checksum.
func ValidChecksum(line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return false
	}
	payload, ck, ok := splitChecksum(line[1:])
	if !ok {
		return false
	}
	return checksumMatches(payload, ck)
}

// splitChecksum separates "payload*HH" into payload and the checksum text.
func splitChecksum(body string) (payload string, ck string, ok bool) {
	star := strings.LastIndexByte(body, '*')
	if star == -1 {
		return body, "", false
	}
	return body[:star], strings.TrimSpace(body[star+1:]), true
}

func checksumMatches(payload, ck string) bool {
	if len(ck) < 2 {
		return false
	}
	want, err := strconv.ParseUint(ck[:2], 16, 8)
	if err != nil {
		return false
	}
	return Checksum(payload) == byte(want)
}
