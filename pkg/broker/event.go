package broker

import (
	json "github.com/goccy/go-json"
)

// Event is one broker-delivered message.
type Event struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
}

// Handler receives events on transport-owned goroutines. It must not block.
type Handler func(Event)

// Encode serialises the event to its text form.
func (e Event) Encode() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeEvent parses the text form produced by Encode.
func DecodeEvent(s string) (Event, error) {
	var e Event
	err := json.Unmarshal([]byte(s), &e)
	return e, err
}
