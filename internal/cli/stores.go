package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/strata/pkg/adapters/file"
	"github.com/aretw0/strata/pkg/adapters/process"
	"github.com/aretw0/strata/pkg/adapters/redis"
	"github.com/aretw0/strata/pkg/lease"
	"github.com/aretw0/strata/pkg/ports"
)

const leaseTTL = 2 * time.Minute

// Backends are the persistence and coordination collaborators of a run.
type Backends struct {
	Markers ports.MarkerStore
	Lease   *lease.Manager
	Table   ports.ProcessTable
	close   func() error
}

// Close releases backend connections.
func (b *Backends) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// setupBackends picks continuation markers on disk or in Redis. With Redis the
// directory lease is shared by every host using the same server.
func setupBackends(opts RunOptions, logger *slog.Logger) (*Backends, error) {
	b := &Backends{}
	if opts.RedisAddr != "" {
		store := redis.New(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, redis.WithPrefix(opts.RedisPrefix+"marker:"))
		b.Markers = store
		// A renewed short lease frees the directory soon after a crashed holder.
		locker := redis.NewLocker(store.Client(), opts.RedisPrefix,
			redis.WithKeepAlive(leaseTTL/4),
			redis.WithLockLogger(logger),
		)
		b.Lease = lease.NewManager(
			lease.WithLocker(locker),
			lease.WithTTL(leaseTTL),
			lease.WithLogger(logger),
		)
		b.close = store.Close
		logger.Info("using redis backend", "addr", opts.RedisAddr)
	} else {
		b.Markers = file.New()
		b.Lease = lease.NewManager(lease.WithLogger(logger))
	}

	if opts.Procfs != "" {
		table, err := process.NewProcfsTable(opts.Procfs)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("failed to open process table: %w", err)
		}
		b.Table = table
	}
	return b, nil
}
