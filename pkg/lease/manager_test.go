package lease_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/strata/pkg/adapters/redis"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/lease"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Exclusive(t *testing.T) {
	m := lease.NewManager()
	dir := t.TempDir()
	ctx := context.Background()

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(ctx, dir)
			if !assert.NoError(t, err) {
				return
			}
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load(), "one holder per directory")
}

func TestManager_RelativeAndAbsoluteShareLease(t *testing.T) {
	m := lease.NewManager()
	abs := t.TempDir()
	t.Chdir(abs)

	release, err := m.Acquire(context.Background(), ".")
	require.NoError(t, err)
	assert.Equal(t, []string{abs}, m.Held())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, filepath.Join(abs, "."))
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()
	assert.Empty(t, m.Held(), "double release is harmless")
}

func TestManager_IndependentDirectories(t *testing.T) {
	m := lease.NewManager()
	ctx := context.Background()
	r1, err := m.Acquire(ctx, t.TempDir())
	require.NoError(t, err)
	r2, err := m.Acquire(ctx, t.TempDir())
	require.NoError(t, err)
	assert.Len(t, m.Held(), 2)
	r1()
	r2()
}

func TestManager_DistributedAcrossManagers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	// Two managers sharing one Redis stand in for two hosts.
	hostA := lease.NewManager(lease.WithLocker(redis.NewLocker(client, "strata:")), lease.WithTTL(time.Minute))
	hostB := lease.NewManager(lease.WithLocker(redis.NewLocker(client, "strata:")), lease.WithTTL(time.Minute))
	dir := t.TempDir()

	release, err := hostA.Acquire(context.Background(), dir)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = hostB.Acquire(ctx, dir)
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Empty(t, hostB.Held(), "a failed acquisition leaves nothing held")

	release()
	releaseB, err := hostB.Acquire(context.Background(), dir)
	require.NoError(t, err)
	releaseB()
}
