// Package credential decodes and serves the login material for each console
// family. Values arrive from configuration base64-encoded with a salt prefix
// ("salt:secret"); decoding happens once at construction so a malformed
// value fails the run before any network traffic.
package credential

import (
	"encoding/base64"
	"fmt"
	"strings"

	"codeberg.org/mutker/fleetinv/internal/backend"
	"codeberg.org/mutker/fleetinv/internal/errors"
)

// DefaultKey is the catch-all store entry consulted when no entry exists
// for a specific console kind.
const DefaultKey = "default"

var errFactory = errors.New()

// Spec is one configured credential pair, still encoded.
type Spec struct {
	Username string
	Password string
}

// Store resolves decoded credentials per console kind. It implements
// backend.CredentialSource.
type Store struct {
	creds map[string]backend.Credentials
}

// NewStore decodes every configured spec. Keys are console kind names or
// DefaultKey.
func NewStore(specs map[string]Spec) (*Store, error) {
	creds := make(map[string]backend.Credentials, len(specs))

	for key, spec := range specs {
		username, err := decode(spec.Username)
		if err != nil {
			return nil, errFactory.WithMessage(ErrInvalidConfig,
				fmt.Sprintf("username for %q: %v", key, err))
		}

		password, err := decode(spec.Password)
		if err != nil {
			return nil, errFactory.WithMessage(ErrInvalidConfig,
				fmt.Sprintf("password for %q: %v", key, err))
		}

		creds[key] = backend.Credentials{Username: username, Password: password}
	}

	return &Store{creds: creds}, nil
}

// Lookup returns the credentials for kind, falling back to the default
// entry when the kind has none of its own.
func (s *Store) Lookup(kind backend.Kind) (backend.Credentials, error) {
	if c, ok := s.creds[kind.String()]; ok {
		return c, nil
	}
	if c, ok := s.creds[DefaultKey]; ok {
		return c, nil
	}

	return backend.Credentials{}, errFactory.WithMessage(ErrMissing,
		"no credentials configured for console kind "+kind.String())
}

// decode strips the salt prefix from a base64("salt:secret") value. The
// secret is everything after the first colon, so secrets may themselves
// contain colons.
func decode(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", err
	}

	decoded := string(raw)
	i := strings.IndexByte(decoded, ':')
	if i < 0 {
		return "", errFactory.WithMessage(ErrInvalidConfig, "decoded value has no salt prefix")
	}

	return decoded[i+1:], nil
}
