package docstore

import (
	"context"
	"time"
)

// Observer receives store operation telemetry.
type Observer interface {
	ObserveStoreOp(op string, d time.Duration, err error)
	WatchStarted()
	WatchStopped()
}

type instrumented struct {
	next Store
	obs  Observer
}

// Instrument wraps s so that every operation is reported to obs.
func Instrument(s Store, obs Observer) Store {
	return &instrumented{next: s, obs: obs}
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	i.obs.ObserveStoreOp(op, time.Since(start), err)
}

func (i *instrumented) Get(ctx context.Context, ref DocRef) (doc *Document, err error) {
	defer func(start time.Time) { i.observe("get", start, err) }(time.Now())
	return i.next.Get(ctx, ref)
}

func (i *instrumented) Set(ctx context.Context, ref DocRef, data Fields, opts ...SetOption) (err error) {
	defer func(start time.Time) { i.observe("set", start, err) }(time.Now())
	return i.next.Set(ctx, ref, data, opts...)
}

func (i *instrumented) Create(ctx context.Context, coll CollectionRef, data Fields) (ref DocRef, err error) {
	defer func(start time.Time) { i.observe("create", start, err) }(time.Now())
	return i.next.Create(ctx, coll, data)
}

func (i *instrumented) Update(ctx context.Context, ref DocRef, data Fields) (err error) {
	defer func(start time.Time) { i.observe("update", start, err) }(time.Now())
	return i.next.Update(ctx, ref, data)
}

func (i *instrumented) Query(ctx context.Context, q Query) (docs []*Document, err error) {
	defer func(start time.Time) { i.observe("query", start, err) }(time.Now())
	return i.next.Query(ctx, q)
}

func (i *instrumented) Watch(ctx context.Context, ref DocRef) (*Watch, error) {
	start := time.Now()
	w, err := i.next.Watch(ctx, ref)
	i.observe("watch", start, err)
	if err != nil {
		return nil, err
	}
	i.obs.WatchStarted()
	go func() {
		<-w.Done()
		i.obs.WatchStopped()
	}()
	return w, nil
}
