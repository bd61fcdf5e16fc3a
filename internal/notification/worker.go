package notification

import (
	"context"
	"fmt"
	"log"
	"sync"

	"medtime-companion/internal/metrics"
)

type namedSink struct {
	name string
	sink Sink
}

// Dispatcher fans events out to the registered sinks from a pool of
// workers. Notify never blocks and never fails.
type Dispatcher struct {
	size  int
	jobs  chan Event
	sinks []namedSink
	wg    sync.WaitGroup
}

// NewDispatcher creates a dispatcher with size workers and a queue of queue events.
func NewDispatcher(size, queue int) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	if queue <= 0 {
		queue = size
	}
	return &Dispatcher{
		size: size,
		jobs: make(chan Event, queue),
	}
}

// Register adds a sink. It must be called before Start.
func (d *Dispatcher) Register(name string, sink Sink) {
	d.sinks = append(d.sinks, namedSink{name: name, sink: sink})
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.size; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Wait blocks until every worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case ev := <-d.jobs:
			d.deliver(ctx, ev)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Notify enqueues ev. A full queue drops the event.
func (d *Dispatcher) Notify(_ context.Context, ev Event) error {
	select {
	case d.jobs <- ev:
	default:
		log.Printf("Notification queue full, dropping %s event for alarm %d", ev.Type, ev.AlarmID)
		for _, s := range d.sinks {
			metrics.ObserveNotification(s.name, fmt.Errorf("dropped"))
		}
	}
	return nil
}

// Jobs returns the jobs channel for testing.
func (d *Dispatcher) Jobs() chan Event {
	return d.jobs
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	for _, s := range d.sinks {
		err := safeNotify(ctx, s.sink, ev)
		metrics.ObserveNotification(s.name, err)
		if err != nil {
			log.Printf("Error delivering %s event for alarm %d via %s: %v", ev.Type, ev.AlarmID, s.name, err)
		}
	}
}

func safeNotify(ctx context.Context, sink Sink, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return sink.Notify(ctx, ev)
}
