// Package eventsvc implements the core.EventPublisher.
package eventsvc

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/trezcool/quizroom/core"
)

// logPublisher only logs the events. Used when no broker is configured.
type logPublisher struct {
	logger core.Logger
}

var _ core.EventPublisher = (*logPublisher)(nil)

func NewLogPublisher(logger core.Logger) core.EventPublisher {
	return &logPublisher{logger: logger}
}

func (p *logPublisher) Publish(_ context.Context, eventType string, payload interface{}) {
	body, _ := json.Marshal(payload)
	p.logger.Debug("[EVENT] " + eventType + ": " + string(body))
}

// Recorder keeps the published events in memory. Used in tests.
type Recorder struct {
	mu     sync.Mutex
	events []core.Event
}

var _ core.EventPublisher = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, eventType string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, core.NewEvent(eventType, payload))
}

// Events returns the recorded events of the given type, or all of them when eventType is empty.
func (r *Recorder) Events(eventType string) []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]core.Event, 0, len(r.events))
	for _, e := range r.events {
		if eventType == "" || e.Type == eventType {
			res = append(res, e)
		}
	}
	return res
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
