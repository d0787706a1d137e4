package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BatmanBruc/inkpay/types"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	got  []types.Notification
	err  error
	gate chan struct{}
}

func (r *recordingSender) Send(_ context.Context, n types.Notification) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.err
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestDispatcherDeliversAndFlushesOnStop(t *testing.T) {
	s := &recordingSender{}
	d := NewDispatcher(s, nil, Config{Workers: 2, QueueSize: 16})
	d.Start()

	for i := 0; i < 10; i++ {
		d.Notify(context.Background(), types.Notification{UserID: int64(i), Title: "t"})
	}
	d.Stop()

	require.Equal(t, 10, s.count())
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	s := &recordingSender{gate: make(chan struct{})}
	d := NewDispatcher(s, nil, Config{Workers: 1, QueueSize: 1})
	d.Start()

	start := time.Now()
	for i := 0; i < 20; i++ {
		d.Notify(context.Background(), types.Notification{UserID: int64(i)})
	}
	require.Less(t, time.Since(start), time.Second)

	close(s.gate)
	d.Stop()
	require.Less(t, s.count(), 20)
	require.GreaterOrEqual(t, s.count(), 1)
}

func TestDispatcherSurvivesSenderErrors(t *testing.T) {
	s := &recordingSender{err: errors.New("chat unavailable")}
	d := NewDispatcher(s, nil, Config{Workers: 1})
	d.Start()
	d.Notify(context.Background(), types.Notification{Alert: true})
	d.Notify(context.Background(), types.Notification{})
	d.Stop()
	require.Equal(t, 2, s.count())
}

func TestMultiJoinsErrors(t *testing.T) {
	ok := &recordingSender{}
	bad := &recordingSender{err: errors.New("down")}
	err := Multi{ok, bad, LogSender{}}.Send(context.Background(), types.Notification{Title: "x"})
	require.ErrorContains(t, err, "down")
	require.Equal(t, 1, ok.count())
}

func TestDispatcherDropsAfterStop(t *testing.T) {
	s := &recordingSender{}
	d := NewDispatcher(s, nil, Config{Workers: 1, QueueSize: 8})
	d.Start()
	d.Stop()

	for i := 0; i < 5; i++ {
		d.Notify(context.Background(), types.Notification{UserID: int64(i)})
	}
	require.Empty(t, d.queue)
	require.Zero(t, s.count())
}
