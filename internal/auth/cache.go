// Package auth caches OAuth client-credentials tokens for the statistics provider.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/woozymasta/ndvimap/internal/apperr"
	"github.com/woozymasta/ndvimap/internal/metrics"
)

const (
	// SafetyMargin is how long before expiry a cached token stops being served.
	SafetyMargin = time.Minute

	// RefreshTimeout bounds one shared token exchange.
	RefreshTimeout = 30 * time.Second
)

// Credentials identify an OAuth client.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Token is an access token and its absolute expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Exchanger performs a client-credentials grant and returns the access token
// and its lifetime.
type Exchanger interface {
	Exchange(ctx context.Context, creds Credentials) (token string, expiresIn time.Duration, err error)
}

// Cache holds one token per client ID. Entries are replaced whole; a failed
// refresh leaves the previous entry in place.
type Cache struct {
	exchanger Exchanger
	now       func() time.Time

	mu     sync.RWMutex
	tokens map[string]Token
	flight singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates an empty token cache backed by exchanger.
func NewCache(exchanger Exchanger, options ...Option) *Cache {
	c := &Cache{
		exchanger: exchanger,
		now:       time.Now,
		tokens:    make(map[string]Token),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Acquire returns a token valid for at least SafetyMargin, exchanging
// credentials when needed. Concurrent refreshes for the same client ID share
// one upstream call.
func (c *Cache) Acquire(ctx context.Context, creds Credentials) (Token, error) {
	if tok, ok := c.fresh(creds.ClientID); ok {
		metrics.CacheHits.WithLabelValues("token").Inc()
		return tok, nil
	}
	metrics.CacheMisses.WithLabelValues("token").Inc()

	ch := c.flight.DoChan(creds.ClientID, func() (any, error) {
		// another flight may have refreshed while we waited
		if tok, ok := c.fresh(creds.ClientID); ok {
			return tok, nil
		}

		// the exchange outlives any single waiter
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RefreshTimeout)
		defer cancel()
		return c.refresh(rctx, creds)
	})

	select {
	case <-ctx.Done():
		return Token{}, &apperr.AuthError{Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		if res.Shared {
			log.Trace().Str("client_id", creds.ClientID).Msg("Shared in-flight token refresh")
		}
		return res.Val.(Token), nil
	}
}

func (c *Cache) refresh(ctx context.Context, creds Credentials) (Token, error) {
	start := c.now()

	value, expiresIn, err := c.exchanger.Exchange(ctx, creds)
	if err != nil {
		metrics.TokenExchanges.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("client_id", creds.ClientID).Msg("Token exchange failed")
		if !apperr.IsAuth(err) {
			err = &apperr.AuthError{Err: err}
		}
		return Token{}, err
	}
	metrics.TokenExchanges.WithLabelValues("ok").Inc()

	tok := Token{Value: value, ExpiresAt: start.Add(expiresIn)}

	c.mu.Lock()
	c.tokens[creds.ClientID] = tok
	c.mu.Unlock()

	log.Debug().
		Str("client_id", creds.ClientID).
		Time("expires_at", tok.ExpiresAt).
		Msg("Token refreshed")

	return tok, nil
}

func (c *Cache) fresh(clientID string) (Token, bool) {
	c.mu.RLock()
	tok, ok := c.tokens[clientID]
	c.mu.RUnlock()

	if !ok || !tok.ExpiresAt.After(c.now().Add(SafetyMargin)) {
		return Token{}, false
	}
	return tok, true
}

// Source binds a cache to one set of credentials.
type Source struct {
	Cache       *Cache
	Credentials Credentials
}

// Token returns the current access token for the bound credentials.
func (s Source) Token(ctx context.Context) (string, error) {
	tok, err := s.Cache.Acquire(ctx, s.Credentials)
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}
