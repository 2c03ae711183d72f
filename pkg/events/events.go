// Package events carries progress notifications from workflow nodes to the caller.
package events

import (
	"context"
	"sync"
	"time"
)

// Event names dispatched by the workflow
const (
	FinalContext       = "final_context"
	FinalAnswer        = "final_answer"
	WebSearchTriggered = "web_search_triggered"
	ImageGenTriggered  = "image_gen_triggered"
	PDFGenTriggered    = "pdf_gen_triggered"
	DocGenTriggered    = "doc_gen_triggered"
	SQLSearchTriggered = "sql_search_triggered"
	FinalCharts        = "final_bar_chart"
	DocProcessing      = "doc_processing"
)

// Event is a named payload
type Event struct {
	Name      string                 `json:"event"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"-"`
}

// Sink receives events
type Sink interface {
	Send(ctx context.Context, event Event)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, event Event)

// Send implements Sink
func (f SinkFunc) Send(ctx context.Context, event Event) { f(ctx, event) }

type sinkKey struct{}

// WithSink attaches a sink to ctx
func WithSink(ctx context.Context, sink Sink) context.Context {
	return context.WithValue(ctx, sinkKey{}, sink)
}

// FromContext returns the sink attached to ctx, if any
func FromContext(ctx context.Context) (Sink, bool) {
	sink, ok := ctx.Value(sinkKey{}).(Sink)
	return sink, ok && sink != nil
}

// Dispatch sends an event to the sink in ctx. Without a sink it does nothing.
func Dispatch(ctx context.Context, name string, data map[string]interface{}) {
	sink, ok := FromContext(ctx)
	if !ok {
		return
	}
	sink.Send(ctx, Event{Name: name, Data: data, Timestamp: time.Now()})
}

// ChannelSink forwards events into a channel, giving up when ctx is done
type ChannelSink struct {
	C chan Event
}

// NewChannelSink creates a sink backed by a buffered channel
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{C: make(chan Event, buffer)}
}

// Send implements Sink
func (s *ChannelSink) Send(ctx context.Context, event Event) {
	select {
	case s.C <- event:
	case <-ctx.Done():
	}
}

// Recorder keeps every event, for tests and batch calls
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Send implements Sink
func (r *Recorder) Send(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Named returns the recorded events with the given name
func (r *Recorder) Named(name string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
