package cooldown

import (
	"context"
	"time"
)

type observedStore struct {
	Store
	onRead  func(time.Duration)
	onWrite func(time.Duration)
}

// Wraps a store so the latency of every read and write is reported.
// Nil callbacks are ignored.
func WithObserver(store Store, onRead, onWrite func(time.Duration)) Store {
	if onRead == nil {
		onRead = func(time.Duration) {}
	}
	if onWrite == nil {
		onWrite = func(time.Duration) {}
	}
	return &observedStore{Store: store, onRead: onRead, onWrite: onWrite}
}

func (o *observedStore) RecordSubmission(ctx context.Context, applicantID string, now time.Time) error {
	startTimer := time.Now()
	err := o.Store.RecordSubmission(ctx, applicantID, now)
	if err == nil {
		o.onWrite(time.Since(startTimer))
	}
	return err
}

func (o *observedStore) LastSubmission(ctx context.Context, applicantID string) (time.Time, bool, error) {
	startTimer := time.Now()
	last, ok, err := o.Store.LastSubmission(ctx, applicantID)
	if err == nil {
		o.onRead(time.Since(startTimer))
	}
	return last, ok, err
}
