package credential_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/fleetinv/internal/backend"
	"codeberg.org/mutker/fleetinv/internal/credential"
	"codeberg.org/mutker/fleetinv/internal/errors"
)

var _ backend.CredentialSource = (*credential.Store)(nil)

func encode(salt, secret string) string {
	return base64.StdEncoding.EncodeToString([]byte(salt + ":" + secret))
}

func TestStoreLookup(t *testing.T) {
	store, err := credential.NewStore(map[string]credential.Spec{
		"oneview": {
			Username: encode("s1", "ov-admin"),
			Password: encode("s2", "ov-secret"),
		},
		credential.DefaultKey: {
			Username: encode("s3", "fallback-user"),
			Password: encode("s4", "fallback-pass"),
		},
	})
	require.NoError(t, err)

	creds, err := store.Lookup(backend.KindOneView)
	require.NoError(t, err)
	assert.Equal(t, "ov-admin", creds.Username)
	assert.Equal(t, "ov-secret", creds.Password)

	creds, err = store.Lookup(backend.KindOME)
	require.NoError(t, err)
	assert.Equal(t, "fallback-user", creds.Username, "kinds without an entry fall back to default")
	assert.Equal(t, "fallback-pass", creds.Password)
}

func TestStoreLookupMissing(t *testing.T) {
	store, err := credential.NewStore(map[string]credential.Spec{
		"oneview": {
			Username: encode("s1", "ov-admin"),
			Password: encode("s2", "ov-secret"),
		},
	})
	require.NoError(t, err)

	_, err = store.Lookup(backend.KindOME)
	require.Error(t, err)
	assert.Equal(t, credential.ErrMissing, errors.CodeOf(err))
}

func TestStoreSecretMayContainColons(t *testing.T) {
	store, err := credential.NewStore(map[string]credential.Spec{
		credential.DefaultKey: {
			Username: encode("salt", "user"),
			Password: encode("salt", "pa:ss:word"),
		},
	})
	require.NoError(t, err)

	creds, err := store.Lookup(backend.KindOME)
	require.NoError(t, err)
	assert.Equal(t, "pa:ss:word", creds.Password, "only the first colon separates the salt")
}

func TestNewStoreMalformedEncoding(t *testing.T) {
	_, err := credential.NewStore(map[string]credential.Spec{
		credential.DefaultKey: {
			Username: "not-base64!!!",
			Password: encode("s", "p"),
		},
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidConfig, errors.CodeOf(err))
}

func TestNewStoreMissingSaltPrefix(t *testing.T) {
	_, err := credential.NewStore(map[string]credential.Spec{
		credential.DefaultKey: {
			Username: base64.StdEncoding.EncodeToString([]byte("nosalt")),
			Password: encode("s", "p"),
		},
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidConfig, errors.CodeOf(err))
}
