package ruleset_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlgate/pkg/ruleset"
)

func TestHolderSwap(t *testing.T) {
	rs := loadCommerce(t)
	h := ruleset.NewHolder(nil)
	assert.Nil(t, h.Load())

	require.NoError(t, h.Swap(rs))
	assert.Same(t, rs, h.Load())

	err := h.Swap(rs.WithVersion(rs.Version))
	require.ErrorIs(t, err, ruleset.ErrStaleVersion)
	err = h.Swap(rs.WithVersion(rs.Version - 1))
	require.ErrorIs(t, err, ruleset.ErrStaleVersion)
	assert.Same(t, rs, h.Load(), "a rejected swap keeps the active snapshot")

	next := rs.WithVersion(rs.Version + 1)
	require.NoError(t, h.Swap(next))
	assert.Same(t, next, h.Load())

	require.Error(t, h.Swap(nil))
}

func TestHolderConcurrentReaders(t *testing.T) {
	base := loadCommerce(t)
	h := ruleset.NewHolder(base)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for j := 0; j < 500; j++ {
				rs := h.Load()
				if rs.Version < last {
					t.Errorf("version went backwards: %d after %d", rs.Version, last)
					return
				}
				last = rs.Version
			}
		}()
	}
	for v := base.Version + 1; v <= base.Version+50; v++ {
		require.NoError(t, h.Swap(base.WithVersion(v)))
	}
	wg.Wait()

	assert.Equal(t, base.Version+50, h.Load().Version)
}
