// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEach(t *testing.T) {
	for _, parallelism := range []int{0, 1, 3, -1} {
		pool := New().SetMaxParallelism(parallelism)
		var running, maxRunning, count atomic.Int32
		err := pool.ForEach(20, func(ii int) error {
			now := running.Add(1)
			for {
				prev := maxRunning.Load()
				if now <= prev || maxRunning.CompareAndSwap(prev, now) {
					break
				}
			}
			count.Add(1)
			running.Add(-1)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, int32(20), count.Load())
		if parallelism > 0 {
			assert.LessOrEqual(t, int(maxRunning.Load()), parallelism)
		}
		if parallelism == 0 {
			assert.Equal(t, int32(1), maxRunning.Load())
		}
	}
}

func TestForEachErrors(t *testing.T) {
	pool := New().SetMaxParallelism(4)
	var count atomic.Int32
	err := pool.ForEach(10, func(ii int) error {
		count.Add(1)
		if ii == 3 || ii == 7 {
			return errors.Errorf("task %d failed", ii)
		}
		return nil
	})
	require.ErrorContains(t, err, "task 3 failed")
	assert.Equal(t, int32(10), count.Load())
}

func TestStartIfAvailable(t *testing.T) {
	pool := New().SetMaxParallelism(0)
	assert.False(t, pool.IsEnabled())
	assert.False(t, pool.StartIfAvailable(func() {}))

	pool.SetMaxParallelism(-1)
	assert.True(t, pool.IsUnlimited())
	done := make(chan struct{})
	assert.True(t, pool.StartIfAvailable(func() { close(done) }))
	<-done
}
