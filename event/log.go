package event

import (
	"encoding/json"
	"io"
	"sync"
)

// Log is the durable append-only event store. Append must succeed before
// the event is handed to any publisher.
type Log interface {
	Append(e Event) error
}

// Publisher delivers events to an external bus. Delivery is best effort and
// happens after the durable append.
type Publisher interface {
	Publish(e Event) error
}

// NoOpLog discards events. Useful when only publication matters.
type NoOpLog struct{}

func (NoOpLog) Append(Event) error { return nil }

// NoOpPublisher discards events.
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(Event) error { return nil }

// JSONWriterLog appends one JSON object per line to a writer.
type JSONWriterLog struct {
	mu sync.Mutex
	w  io.Writer
}

func NewJSONWriterLog(w io.Writer) *JSONWriterLog {
	return &JSONWriterLog{w: w}
}

func (l *JSONWriterLog) Append(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.w.Write(data)
	return err
}

// MemoryLog keeps appended events in memory. Intended for tests.
type MemoryLog struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

// Events returns a copy of everything appended so far.
func (l *MemoryLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// ChannelPublisher forwards events to a channel. Intended for tests; a full
// channel blocks.
type ChannelPublisher struct {
	C chan Event
}

func NewChannelPublisher(buffer int) *ChannelPublisher {
	return &ChannelPublisher{C: make(chan Event, buffer)}
}

func (p *ChannelPublisher) Publish(e Event) error {
	p.C <- e
	return nil
}
