package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	dErrors "carrieralpha/pkg/domain-errors"
)

// StoreTx provides the transactional boundary for one unit of work. Postgres
// implementations carry the *sql.Tx in txCtx (see pkg/platform/tx); the in-memory
// implementation serializes units that share a shard key.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

const numTxShards = 128

// DefaultTxTimeout caps a unit of work when the caller set no deadline.
const DefaultTxTimeout = 5 * time.Second

type shardedTx struct {
	shards  [numTxShards]sync.Mutex
	timeout time.Duration
}

func newShardedTx(timeout time.Duration) *shardedTx {
	return &shardedTx{timeout: timeout}
}

// NewInMemoryTx returns the lock-based StoreTx used with the in-memory stores.
func NewInMemoryTx(timeout time.Duration) StoreTx {
	return newShardedTx(timeout)
}

func (t *shardedTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	timeout := t.timeout
	if timeout == 0 {
		timeout = DefaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

func (t *shardedTx) selectShard(ctx context.Context) int {
	key, ok := ctx.Value(txShardKeyCtx).(string)
	if !ok || key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % numTxShards)
}

type txShardKey struct{}

var txShardKeyCtx = txShardKey{}

// withShardKey tags ctx so in-memory units for the same shipment or claim serialize.
func withShardKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, txShardKeyCtx, key)
}
