package reduce

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrGroupLimitCPU(t *testing.T) {
	t.Parallel()

	var count atomic.Int32
	eg := ErrGroupLimitCPU()
	for i := 0; i < 20; i++ {
		eg.Go(func() error {
			count.Add(1)
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	assert.Equal(t, int32(20), count.Load())
}
