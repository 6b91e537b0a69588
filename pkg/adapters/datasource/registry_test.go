package datasource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	d := &fakeDialect{}
	Register(d)
	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, "fake")
		registryMu.Unlock()
	})

	got, err := Lookup("fake")
	require.NoError(t, err)
	assert.Same(t, d, got)
	assert.True(t, IsRegistered("fake"))
	assert.Contains(t, RegisteredDialects(), d.Info())
}

func TestRegistry_LookupUnknown(t *testing.T) {
	_, err := Lookup("sqlite")
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedDialect)
	assert.False(t, IsRegistered("sqlite"))
}
