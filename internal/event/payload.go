package event

import (
	"encoding/json"
	"fmt"

	"fleettrack/internal/fix"
)

// Payload is the JSON body network sinks publish for one event.
type Payload struct {
	Device   string  `json:"device,omitempty"`
	Seq      uint64  `json:"seq"`
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Priority string  `json:"priority"`
	Fix      fix.Fix `json:"fix"`
}

func NewPayload(device string, ev Event) Payload {
	return Payload{
		Device:   device,
		Seq:      ev.Seq,
		Code:     fmt.Sprintf("0x%04X", uint16(ev.Code())),
		Name:     ev.Code().String(),
		Priority: ev.Priority.String(),
		Fix:      ev.Fix,
	}
}

func marshalPayload(device string, ev Event) ([]byte, error) {
	return json.Marshal(NewPayload(device, ev))
}
