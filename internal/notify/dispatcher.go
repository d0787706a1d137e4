package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BatmanBruc/inkpay/types"
)

// Sender delivers one notification.
type Sender interface {
	Send(ctx context.Context, n types.Notification) error
}

type Config struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

// Dispatcher is a fire-and-forget types.Notifier backed by a worker pool.
// Notify never blocks: when the queue is full the notification is dropped and logged.
type Dispatcher struct {
	sender  Sender
	workers int
	timeout time.Duration
	logger  *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	queue   chan types.Notification
}

func NewDispatcher(sender Sender, logger *slog.Logger, config Config) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.QueueSize <= 0 {
		config.QueueSize = config.Workers * 16
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sender:  sender,
		workers: config.Workers,
		timeout: config.SendTimeout,
		logger:  logger.With("component", "notify"),
		ctx:     ctx,
		cancel:  cancel,
		queue:   make(chan types.Notification, config.QueueSize),
	}
}

func (d *Dispatcher) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("dispatcher started", "workers", d.workers)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Stop cancels the workers after they flush what is already queued.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.cancel()
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

// Notify queues n for delivery. Notifications sent after Stop are dropped.
func (d *Dispatcher) Notify(_ context.Context, n types.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx.Err() != nil {
		d.logger.Warn("notification dropped after shutdown", "user_id", n.UserID, "title", n.Title)
		return
	}
	select {
	case d.queue <- n:
	default:
		d.logger.Warn("notification queue full, dropping", "user_id", n.UserID, "title", n.Title)
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			d.drain(id)
			return
		case n := <-d.queue:
			d.send(id, n)
		}
	}
}

func (d *Dispatcher) drain(id int) {
	for {
		select {
		case n := <-d.queue:
			d.send(id, n)
		default:
			return
		}
	}
}

func (d *Dispatcher) send(id int, n types.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.sender.Send(ctx, n); err != nil {
		d.logger.Error("notification failed", "worker", id, "user_id", n.UserID, "title", n.Title, "err", err)
	}
}
