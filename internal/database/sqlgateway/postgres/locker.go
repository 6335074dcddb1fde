package postgres

import (
	"context"
	"hash/fnv"

	"github.com/denismitr/tenants/internal/database"
	"github.com/pkg/errors"
)

const DefaultLockKey = "tenants_migrations"

type Locker struct {
	lockKey int64
	noLock  bool
}

var _ database.Locker = (*Locker)(nil)

func NewLocker(lockKey int64, noLock bool) *Locker {
	return &Locker{lockKey: lockKey, noLock: noLock}
}

// TenantLockKey maps the base key and tenant name onto an advisory lock id
func TenantLockKey(base, tenant string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(base))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(tenant))
	return int64(h.Sum64())
}

func (l *Locker) Lock(ctx context.Context, q database.Queryer) error {
	if l.noLock {
		return nil
	}

	if _, err := q.ExecContext(ctx, "SELECT pg_advisory_lock($1)", l.lockKey); err != nil {
		return errors.Wrapf(err, "could not obtain [%d] advisory lock", l.lockKey)
	}

	return nil
}

func (l *Locker) Unlock(ctx context.Context, q database.Queryer) error {
	if l.noLock {
		return nil
	}

	if _, err := q.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockKey); err != nil {
		return errors.Wrapf(err, "could not release [%d] advisory lock", l.lockKey)
	}

	return nil
}
