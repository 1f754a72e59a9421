// Package backend speaks the management console dialects found in the fleet.
// Each console family is a Strategy: it authenticates a target, lists the
// entities the console manages, and fetches per-entity detail documents. The
// Registry holds the strategies in trial order for flavor probing.
package backend

import (
	"context"
	"time"

	"codeberg.org/mutker/fleetinv/internal/errors"
	"codeberg.org/mutker/fleetinv/internal/inventory"
)

// Kind identifies a console family.
type Kind string

const (
	KindUnknown Kind = "unknown"
	KindOneView Kind = "oneview"
	KindOME     Kind = "ome"
)

func (k Kind) String() string {
	return string(k)
}

// ParseKind maps a configured kind string to a Kind. The empty string is
// valid and means the flavor is not declared, so the target must be probed.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindUnknown:
		return KindUnknown, nil
	case KindOneView:
		return KindOneView, nil
	case KindOME:
		return KindOME, nil
	}

	return KindUnknown, errFactory.WithMessage(ErrUnknownKind, "unknown backend kind: "+s)
}

// Credentials is a plaintext username/password pair, already decoded by the
// credential store.
type Credentials struct {
	Username string
	Password string
}

// CredentialSource resolves the credentials to present to a console family.
type CredentialSource interface {
	Lookup(kind Kind) (Credentials, error)
}

// DetailSpec describes how one detail category is fetched and normalized for
// a console family. PathTemplate carries a single %s verb for the entity ID.
type DetailSpec struct {
	PathTemplate string
	Mapping      inventory.MappingSet
}

// Strategy implements one console dialect.
type Strategy interface {
	Kind() Kind
	// Authenticate performs the dialect handshake and returns a session
	// carrying the issued token. Errors are coded ErrAuthFailed.
	Authenticate(ctx context.Context, target inventory.Target, creds Credentials) (*Session, error)
	// ListEntities walks the paginated listing. On a first-page failure it
	// returns no entities; on a later-page failure it returns the entities
	// gathered so far alongside the error.
	ListEntities(ctx context.Context, sess *Session) ([]inventory.Entity, error)
	// DetailSpec reports whether the dialect supports a category and how to
	// fetch it.
	DetailSpec(category string) (DetailSpec, bool)
	// FetchDetail retrieves one raw detail document. Transport errors are
	// returned unwrapped so callers can classify them for retry.
	FetchDetail(ctx context.Context, sess *Session, entity inventory.Entity, spec DetailSpec) (any, error)
}

// Config carries the transport settings shared by all strategies.
type Config struct {
	Timeout     time.Duration
	InsecureTLS bool
	PageSize    int
}

const (
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 100
)

func DefaultConfig() Config {
	return Config{
		Timeout:  defaultTimeout,
		PageSize: defaultPageSize,
	}
}

func (c Config) Validate() error {
	if c.Timeout < 0 {
		return errFactory.WithMessage(ErrInvalidConfig, "timeout cannot be negative")
	}

	if c.PageSize < 0 {
		return errFactory.WithMessage(ErrInvalidConfig, "page size cannot be negative")
	}

	return nil
}

func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}

	if c.PageSize == 0 {
		c.PageSize = defaultPageSize
	}

	return c
}

// Registry holds the known strategies. Registration order is the order in
// which Probe trials them.
type Registry struct {
	strategies []Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	return &Registry{strategies: strategies}
}

// Strategy returns the strategy for a declared kind.
func (r *Registry) Strategy(kind Kind) (Strategy, bool) {
	for _, s := range r.strategies {
		if s.Kind() == kind {
			return s, true
		}
	}

	return nil, false
}

// Kinds lists the registered kinds in trial order.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.strategies))
	for _, s := range r.strategies {
		kinds = append(kinds, s.Kind())
	}

	return kinds
}

var errFactory = errors.New()
