package heartbeat

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

type countingPinger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPinger) Ping(ctx context.Context) error {
	p.calls.Add(1)
	return p.err
}

func TestBeatPingsAllTargets(t *testing.T) {
	a := &countingPinger{}
	b := &countingPinger{err: fmt.Errorf("down")}

	s := New(Config{Enabled: true, Interval: time.Minute}, a, b)
	s.beat(context.Background())

	if a.calls.Load() != 1 || b.calls.Load() != 1 {
		t.Fatalf("calls = %d, %d; a failing target must not stop the round", a.calls.Load(), b.calls.Load())
	}
}

func TestStartDisabledReturnsImmediately(t *testing.T) {
	p := &countingPinger{}
	s := New(Config{Enabled: false, Interval: time.Minute}, p)

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled service did not return")
	}
	if p.calls.Load() != 0 {
		t.Fatalf("calls = %d", p.calls.Load())
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	s := New(Config{Enabled: true, Interval: time.Minute}, &countingPinger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("service did not stop on cancel")
	}
}
