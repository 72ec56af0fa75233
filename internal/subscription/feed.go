package subscription

import (
	"sync"
	"sync/atomic"
)

// Feed delivers values to any number of subscriptions without blocking the sender.
// A value is dropped for a subscription whose buffer is full.
type Feed[T any] struct {
	mu            sync.RWMutex
	subscriptions map[*Subscription[T]]struct{}
	dropped       atomic.Int64
}

func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{
		subscriptions: make(map[*Subscription[T]]struct{}),
	}
}

// Subscribe registers ch until the returned subscription is unsubscribed.
func (f *Feed[T]) Subscribe(ch chan<- T) *ClientSubscription[T] {
	sub := NewSubscription(ch)

	f.mu.Lock()
	f.subscriptions[sub] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-sub.Done()
		f.mu.Lock()
		delete(f.subscriptions, sub)
		f.mu.Unlock()
	}()

	return sub.Client()
}

// Send delivers value to every open subscription and returns the number of subscriptions that missed it.
func (f *Feed[T]) Send(value T) (missed int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for sub := range f.subscriptions {
		if !sub.TrySend(value) && !sub.IsClosed() {
			missed++
		}
	}
	f.dropped.Add(int64(missed))
	return missed
}

// Len returns the number of active subscriptions.
func (f *Feed[T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscriptions)
}

// Dropped returns the number of values dropped because of full subscription buffers.
func (f *Feed[T]) Dropped() int64 {
	return f.dropped.Load()
}
