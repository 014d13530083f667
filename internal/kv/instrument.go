package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	labelDriver  = "driver"
	labelMethod  = "method"
	labelSuccess = "success"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "catalog_cache",
	Subsystem: "backend",
	Name:      "request_duration_seconds",
	Help:      "Duration of key-value backend requests, in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{labelDriver, labelMethod, labelSuccess})

type instrumentedBackend struct {
	driver string
	next   Backend
}

// Instrument 为后端每个方法记录耗时直方图；ErrNotFound 视为成功请求。
func Instrument(driver string, b Backend) Backend {
	if _, ok := b.(*instrumentedBackend); ok {
		return b
	}
	return &instrumentedBackend{driver: driver, next: b}
}

func (i *instrumentedBackend) observe(method string, begin time.Time, err error) {
	success := err == nil || errors.Is(err, ErrNotFound)
	requestDuration.With(prometheus.Labels{
		labelDriver:  i.driver,
		labelMethod:  method,
		labelSuccess: fmt.Sprint(success),
	}).Observe(time.Since(begin).Seconds())
}

func (i *instrumentedBackend) Get(ctx context.Context, key string) (_ []byte, err error) {
	defer func(begin time.Time) { i.observe("Get", begin, err) }(time.Now())
	return i.next.Get(ctx, key)
}

func (i *instrumentedBackend) Set(ctx context.Context, key string, value []byte) (err error) {
	defer func(begin time.Time) { i.observe("Set", begin, err) }(time.Now())
	return i.next.Set(ctx, key, value)
}

func (i *instrumentedBackend) Apply(ctx context.Context, batch Batch) (err error) {
	defer func(begin time.Time) { i.observe("Apply", begin, err) }(time.Now())
	return i.next.Apply(ctx, batch)
}

func (i *instrumentedBackend) Ping(ctx context.Context) (err error) {
	defer func(begin time.Time) { i.observe("Ping", begin, err) }(time.Now())
	return i.next.Ping(ctx)
}

func (i *instrumentedBackend) Close() error {
	return i.next.Close()
}
