// ABOUTME: Scheme interface and the ordered authentication chain.
// ABOUTME: Runs per-endpoint scheme lists and caches resolved identities.

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Sentinel errors for the three ways authentication can end without an
// identity. ErrBadCredential and ErrUnauthenticated both map to the same
// outward response so that probing cannot distinguish a wrong secret from
// an unknown username.
var (
	// ErrUnauthenticated means no scheme could use the presented credentials.
	ErrUnauthenticated = errors.New("invalid credentials")
	// ErrBadCredential means a credential matched a tenant but failed
	// verification inside it.
	ErrBadCredential = errors.New("credential verification failed")
	// ErrInactive means the credentials resolved to a deactivated project.
	ErrInactive = errors.New("project is inactive")
)

// Scheme authenticates one kind of credential. A scheme that does not
// recognise anything in the credentials returns (nil, nil) so the chain
// moves on to the next one.
type Scheme interface {
	Authenticate(ctx context.Context, creds *Credentials) (*Identity, error)
}

// Chain runs an ordered list of schemes and returns the first identity
// produced. Results, including negative ones, are cached by credential
// set. Inactive-project refusals and transient scheme errors are never
// cached: the former so the owner alert cooldown stays accurate, the
// latter so a store hiccup cannot refuse a valid credential for the TTL.
type Chain struct {
	schemes []Scheme
	cache   Cache
	ttl     time.Duration
	logger  *slog.Logger
}

// NewChain builds a chain over the given schemes, tried in order.
// cache may be nil to disable caching.
func NewChain(cache Cache, ttl time.Duration, logger *slog.Logger, schemes ...Scheme) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		schemes: schemes,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.With("component", "auth"),
	}
}

// Authenticate resolves the credentials to an identity, or reports why it
// could not. A wrong secret does not stop the chain: a later scheme may
// still match, and if none does the failure is reported as ErrBadCredential
// so audit logs can tell it apart from a request with no usable credential.
func (c *Chain) Authenticate(ctx context.Context, creds *Credentials) (*Identity, error) {
	if creds == nil || creds.Empty() {
		return nil, ErrUnauthenticated
	}

	key := creds.CacheKey()
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, key); ok {
			return cached.identity()
		}
	}

	id, err := c.resolve(ctx, creds)
	if c.cache != nil && cacheable(err) {
		c.cache.Set(ctx, key, newCachedResult(id, err), c.ttl)
	}
	return id, err
}

// cacheable reports whether an authentication outcome may be remembered.
// Only settled verdicts qualify; an inactive project can be reactivated,
// and a transient store failure must not pin a refusal for the TTL.
func cacheable(err error) bool {
	return err == nil || errors.Is(err, ErrBadCredential) || errors.Is(err, ErrUnauthenticated)
}

func (c *Chain) resolve(ctx context.Context, creds *Credentials) (*Identity, error) {
	var failed error
	for _, s := range c.schemes {
		id, err := s.Authenticate(ctx, creds)
		if err != nil {
			if errors.Is(err, ErrBadCredential) {
				failed = err
				continue
			}
			return nil, err
		}
		if id != nil {
			c.logger.Debug("authenticated", "actor", id.Actor.String(), "project", id.Project.PublicKey)
			return id, nil
		}
	}
	if failed != nil {
		return nil, failed
	}
	return nil, ErrUnauthenticated
}
