package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

const defaultTripThreshold = 5

// CircuitBreakerFetcher wraps a Fetcher with one circuit breaker per index host.
// Not-found responses are answers, not failures, and never count towards
// tripping a breaker.
type CircuitBreakerFetcher struct {
	fetcher   FetcherInterface
	threshold int64
	breakers  map[string]*circuit.Breaker
	mu        sync.RWMutex
}

// BreakerState reports the state of one host's breaker.
type BreakerState struct {
	Host  string `json:"host" yaml:"host"`
	State string `json:"state" yaml:"state"`
}

// NewCircuitBreakerFetcher creates a new circuit breaker wrapper for a fetcher.
func NewCircuitBreakerFetcher(f FetcherInterface) *CircuitBreakerFetcher {
	return &CircuitBreakerFetcher{
		fetcher:   f,
		threshold: defaultTripThreshold,
		breakers:  make(map[string]*circuit.Breaker),
	}
}

// WithTripThreshold sets the number of consecutive failures that opens a breaker.
func (cbf *CircuitBreakerFetcher) WithTripThreshold(n int64) *CircuitBreakerFetcher {
	if n > 0 {
		cbf.threshold = n
	}
	return cbf
}

func (cbf *CircuitBreakerFetcher) getBreaker(host string) *circuit.Breaker {
	cbf.mu.RLock()
	breaker, exists := cbf.breakers[host]
	cbf.mu.RUnlock()

	if exists {
		return breaker
	}

	cbf.mu.Lock()
	defer cbf.mu.Unlock()

	if breaker, exists := cbf.breakers[host]; exists {
		return breaker
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(cbf.threshold),
	})

	cbf.breakers[host] = breaker
	return breaker
}

func (cbf *CircuitBreakerFetcher) call(host string, fn func() error) error {
	breaker := cbf.getBreaker(host)
	if !breaker.Ready() {
		return fmt.Errorf("circuit breaker open for %s: %w", host, ErrUpstreamDown)
	}

	var notFound error
	err := breaker.Call(func() error {
		err := fn()
		if errors.Is(err, ErrNotFound) {
			notFound = err
			return nil
		}
		return err
	}, 0)
	if err != nil {
		return err
	}
	return notFound
}

// Fetch wraps the underlying fetcher's Fetch with circuit breaker logic.
func (cbf *CircuitBreakerFetcher) Fetch(ctx context.Context, fetchURL string) (*Artifact, error) {
	var artifact *Artifact
	err := cbf.call(hostOf(fetchURL), func() error {
		var fetchErr error
		artifact, fetchErr = cbf.fetcher.Fetch(ctx, fetchURL)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// Head wraps the underlying fetcher's Head with circuit breaker logic.
func (cbf *CircuitBreakerFetcher) Head(ctx context.Context, headURL string) (size int64, contentType string, err error) {
	err = cbf.call(hostOf(headURL), func() error {
		var headErr error
		size, contentType, headErr = cbf.fetcher.Head(ctx, headURL)
		return headErr
	})
	return size, contentType, err
}

// hostOf groups URLs by host for breaker selection.
func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}

// States returns every breaker's state sorted by host.
func (cbf *CircuitBreakerFetcher) States() []BreakerState {
	cbf.mu.RLock()
	defer cbf.mu.RUnlock()

	states := make([]BreakerState, 0, len(cbf.breakers))
	for host, breaker := range cbf.breakers {
		state := "closed"
		if breaker.Tripped() {
			state = "open"
		}
		states = append(states, BreakerState{Host: host, State: state})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Host < states[j].Host })
	return states
}
