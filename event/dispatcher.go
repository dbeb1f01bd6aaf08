package event

import (
	"sync"
	"sync/atomic"
)

// Dispatcher is the append-then-publish pipeline. Emit appends to the log
// synchronously so the durable write precedes delivery, then queues the
// event for a background publisher goroutine. When the queue is full the
// event is dropped from publication (never from the log) and counted.
type Dispatcher struct {
	log       Log
	publisher Publisher

	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	dropped   atomic.Uint64
}

func NewDispatcher(log Log, publisher Publisher, buffer int) *Dispatcher {
	if log == nil {
		log = NoOpLog{}
	}
	if publisher == nil {
		publisher = NoOpPublisher{}
	}
	if buffer <= 0 {
		buffer = 256
	}

	d := &Dispatcher{
		log:       log,
		publisher: publisher,
		ch:        make(chan Event, buffer),
		done:      make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Emit appends the event and schedules publication. The append error is
// returned; publication failures are invisible to the caller.
func (d *Dispatcher) Emit(e Event) error {
	if err := d.log.Append(e); err != nil {
		return err
	}

	select {
	case <-d.done:
		d.dropped.Add(1)
		return nil
	default:
	}

	select {
	case d.ch <- e:
	default:
		d.dropped.Add(1)
	}
	return nil
}

// Dropped returns how many events were appended but never published.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close stops accepting new events, drains the queue, and waits for the
// publisher goroutine to finish.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case e := <-d.ch:
			d.publish(e)
		case <-d.done:
			for {
				select {
				case e := <-d.ch:
					d.publish(e)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) publish(e Event) {
	if err := d.publisher.Publish(e); err != nil {
		d.dropped.Add(1)
	}
}
