package keyring

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeSelectsFirstAvailableBackend(t *testing.T) {
	t.Parallel()

	broken := NewMockProvider()
	broken.FailWith = errors.New("backend unavailable")
	working := NewMockProvider()

	composite := &compositeProvider{candidates: []Provider{broken, working}}

	require.NoError(t, composite.Set("svc", "key", "value"))
	got, err := working.Get("svc", "key")
	require.NoError(t, err)
	assert.Equal(t, "value", got)
}

func TestCompositeSticksToSelectedBackend(t *testing.T) {
	t.Parallel()

	first := NewMockProvider()
	second := NewMockProvider()
	composite := &compositeProvider{candidates: []Provider{first, second}}

	require.NoError(t, composite.Set("svc", "key", "value"))

	// Even if the first backend later reports unavailable, the selection
	// sticks so secrets are not split across backends.
	first.FailWith = errors.New("backend went away")
	_, err := composite.Get("svc", "key")
	assert.Error(t, err, "selected backend is kept, not re-evaluated")
	_, err = second.Get("svc", "key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompositeConcurrentFirstUse(t *testing.T) {
	t.Parallel()

	broken := NewMockProvider()
	broken.FailWith = errors.New("backend unavailable")
	working := NewMockProvider()
	composite := &compositeProvider{candidates: []Provider{broken, working}}

	// Concurrent writers and readers race the lazy backend selection.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i)
			assert.NoError(t, composite.Set("svc", key, "value"))
			got, err := composite.Get("svc", key)
			assert.NoError(t, err)
			assert.Equal(t, "value", got)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		got, err := working.Get("svc", fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		assert.Equal(t, "value", got)
	}
}
