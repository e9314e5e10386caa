// Package ev provides the event queue that carries incoming protocol
// messages from the socket reader to whatever goroutine dispatches
// them.
package ev

import (
	"errors"
	"sync"
)

// Queue accepts events from one goroutine and hands them out in
// batches to another. Neither side blocks the other for longer than
// it takes the internal loop to move the event.
type Queue struct {
	done  chan struct{}
	close sync.Once

	add chan func() error
	get chan *Events
}

func NewQueue() *Queue {
	q := Queue{
		done: make(chan struct{}),
		add:  make(chan func() error),
		get:  make(chan *Events),
	}
	go q.run()

	return &q
}

// Stop shuts the queue down. Pending events are dropped.
func (q *Queue) Stop() {
	q.close.Do(func() {
		close(q.done)
	})
}

// Add returns the channel that events are pushed onto.
func (q *Queue) Add() chan<- func() error {
	return q.add
}

// Get returns the channel that batches arrive on. A receive drains
// everything added since the previous receive.
func (q *Queue) Get() <-chan *Events {
	return q.get
}

func (q *Queue) run() {
	var s []func() error
	var get chan *Events

	for {
		select {
		case <-q.done:
			return

		case v := <-q.add:
			s = append(s, v)
			get = q.get

		case get <- &Events{events: s}:
			s = nil
			get = nil
		}
	}
}

// Events represents a series of events from a Client's event queue.
type Events struct {
	events []func() error
}

// Flush processes all of the events represented by q.
func (q *Events) Flush() error {
	return errors.Join(Flush(q)...)
}

func Flush(queue *Events) (errs []error) {
	for _, ev := range queue.events {
		err := ev()
		if err != nil {
			errs = append(errs, err)
		}
	}
	queue.events = nil
	return errs
}
