package notification

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/attendsync/attendance-monitor/internal/conf"
	"github.com/attendsync/attendance-monitor/internal/logger"
)

const (
	// DefaultHistorySize is used when the configured history size is not positive.
	DefaultHistorySize = 200

	subscriberBuffer = 32
	dispatchBuffer   = 64
	sendTimeout      = 30 * time.Second
)

// DeliveryRecorder receives per-provider delivery metrics.
type DeliveryRecorder interface {
	RecordDelivery(provider, status string, d time.Duration)
}

type noopDeliveryRecorder struct{}

func (noopDeliveryRecorder) RecordDelivery(string, string, time.Duration) {}

// Delivery status values passed to DeliveryRecorder.
const (
	deliverySuccess     = "success"
	deliveryError       = "error"
	deliveryRateLimited = "rate_limited"
)

type subscriber struct {
	ch     chan *Notification
	ctx    context.Context
	cancel context.CancelFunc
}

type delivery struct {
	provider Provider
	n        *Notification
}

// Service keeps a bounded history of notifications, fans them out to
// subscribers and hands them to outbound providers on a background worker.
// A nil *Service is valid and drops everything.
type Service struct {
	log     logger.Logger
	metrics DeliveryRecorder
	limiter *rate.Limiter

	mu      sync.RWMutex
	history []*Notification // oldest first
	maxSize int
	subs    []*subscriber

	providers []Provider
	queue     chan delivery

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithProviders adds outbound providers. Providers failing ValidateConfig are
// logged and skipped.
func WithProviders(providers ...Provider) ServiceOption {
	return func(s *Service) {
		for _, p := range providers {
			if p == nil {
				continue
			}
			if err := p.ValidateConfig(); err != nil {
				s.log.Error("notification provider disabled",
					logger.String("provider", p.GetName()),
					logger.Error(err))
				continue
			}
			s.providers = append(s.providers, p)
		}
	}
}

// WithDeliveryRecorder sets the metrics sink for provider deliveries.
func WithDeliveryRecorder(r DeliveryRecorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

// NewService creates a notification service. The delivery worker only runs
// when at least one provider is configured.
func NewService(settings conf.NotificationSettings, log logger.Logger, opts ...ServiceOption) *Service {
	if log == nil {
		log = logger.Global().Module("notification")
	}
	size := settings.HistorySize
	if size <= 0 {
		size = DefaultHistorySize
	}

	limit := rate.Inf
	burst := settings.RateLimit.Burst
	if settings.RateLimit.PerMinute > 0 {
		limit = rate.Limit(float64(settings.RateLimit.PerMinute) / 60)
		if burst <= 0 {
			burst = 1
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		log:     log,
		metrics: noopDeliveryRecorder{},
		limiter: rate.NewLimiter(limit, burst),
		maxSize: size,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	if len(s.providers) > 0 {
		s.queue = make(chan delivery, dispatchBuffer)
		s.wg.Add(1)
		go s.dispatchLoop()
	}
	return s
}

// Notify records n, broadcasts it to subscribers and queues it for providers.
func (s *Service) Notify(n *Notification) {
	if s == nil || n == nil {
		return
	}
	if s.ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	s.history = append(s.history, n)
	if over := len(s.history) - s.maxSize; over > 0 {
		clear(s.history[:over])
		s.history = s.history[over:]
	}
	s.broadcastLocked(n)
	s.mu.Unlock()

	s.enqueue(n)
}

// broadcastLocked sends a clone to every live subscriber, dropping it for
// subscribers whose buffer is full. Cancelled subscribers are removed.
func (s *Service) broadcastLocked(n *Notification) {
	active := s.subs[:0]
	for _, sub := range s.subs {
		if sub.ctx.Err() != nil {
			continue
		}
		active = append(active, sub)
		select {
		case sub.ch <- n.Clone():
		default:
			s.log.Debug("subscriber channel full, dropping notification",
				logger.String("notification_id", n.ID))
		}
	}
	clear(s.subs[len(active):])
	s.subs = active
}

func (s *Service) enqueue(n *Notification) {
	for _, p := range s.providers {
		if !p.Accepts(n) {
			continue
		}
		if !s.limiter.Allow() {
			s.metrics.RecordDelivery(p.GetName(), deliveryRateLimited, 0)
			s.log.Warn("notification rate limit reached, not delivered",
				logger.String("provider", p.GetName()),
				logger.String("title", n.Title))
			continue
		}
		select {
		case s.queue <- delivery{provider: p, n: n.Clone()}:
		case <-s.ctx.Done():
			return
		default:
			s.metrics.RecordDelivery(p.GetName(), deliveryError, 0)
			s.log.Warn("notification dispatch queue full, not delivered",
				logger.String("provider", p.GetName()))
		}
	}
}

func (s *Service) dispatchLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case d := <-s.queue:
			s.deliver(d)
		}
	}
}

func (s *Service) deliver(d delivery) {
	ctx, cancel := context.WithTimeout(s.ctx, sendTimeout)
	defer cancel()

	start := time.Now()
	err := d.provider.Send(ctx, d.n)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.RecordDelivery(d.provider.GetName(), deliveryError, elapsed)
		s.log.Error("notification delivery failed",
			logger.String("provider", d.provider.GetName()),
			logger.String("notification_id", d.n.ID),
			logger.Error(err))
		return
	}
	s.metrics.RecordDelivery(d.provider.GetName(), deliverySuccess, elapsed)
}

// Recent returns up to limit notifications, newest first. limit <= 0 returns all.
func (s *Service) Recent(limit int) []*Notification {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*Notification, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.history[i].Clone())
	}
	return out
}

// Subscribe returns a channel receiving every future notification, and a
// context that is cancelled when the subscription ends. The channel is never
// closed; readers should select on the context.
func (s *Service) Subscribe() (<-chan *Notification, context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(s.ctx)
	sub := &subscriber{
		ch:     make(chan *Notification, subscriberBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	s.subs = append(s.subs, sub)
	return sub.ch, ctx
}

// Unsubscribe ends the subscription owning ch.
func (s *Service) Unsubscribe(ch <-chan *Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subs {
		if sub.ch == ch {
			sub.cancel()
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// Close stops the delivery worker, ends all subscriptions and closes providers.
// Notifications still queued for providers are dropped.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()

		s.mu.Lock()
		for _, sub := range s.subs {
			sub.cancel()
		}
		s.subs = nil
		s.mu.Unlock()

		for _, p := range s.providers {
			if err := p.Close(); err != nil {
				s.log.Warn("failed to close notification provider",
					logger.String("provider", p.GetName()),
					logger.Error(err))
			}
		}
	})
}
