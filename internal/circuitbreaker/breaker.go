// Package circuitbreaker stops calling a host after repeated failures and lets
// a single probe through once the cooldown has passed.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ErrOpen = errors.New("circuit breaker is open")

type state int

const (
	closed state = iota
	open
	halfOpen
)

var mOpened = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "circuit_breaker_opened_total", Help: "Times a breaker opened, by breaker name.",
}, []string{"name"})

type entry struct {
	state    state
	failures int
	openedAt time.Time
}

type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

func New(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	return &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		entries:   make(map[string]*entry),
	}
}

// Allow returns ErrOpen while key's breaker is open. After the cooldown it
// admits one probe and rejects everything else until the probe reports back.
func (b *Breaker) Allow(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[key]
	if !ok {
		return nil
	}
	switch e.state {
	case open:
		if b.now().Sub(e.openedAt) >= b.cooldown {
			e.state = halfOpen
			return nil
		}
		return ErrOpen
	case halfOpen:
		return ErrOpen
	}
	return nil
}

func (b *Breaker) Success(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
}

func (b *Breaker) Failure(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[key]
	if !ok {
		e = &entry{}
		b.entries[key] = e
	}
	e.failures++
	if e.state == halfOpen || e.failures >= b.threshold {
		if e.state != open {
			mOpened.WithLabelValues(b.name).Inc()
		}
		e.state = open
		e.openedAt = b.now()
	}
}

// Do runs fn unless key's breaker is open and records the result.
func (b *Breaker) Do(key string, fn func() error) error {
	if err := b.Allow(key); err != nil {
		return err
	}
	if err := fn(); err != nil {
		b.Failure(key)
		return err
	}
	b.Success(key)
	return nil
}
