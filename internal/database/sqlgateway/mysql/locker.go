package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"

	"github.com/denismitr/tenants/internal/database"
	"github.com/pkg/errors"
)

const DefaultLockKey = "tenants_migrations"
const DefaultLockSeconds = 10

// MySQL refuses lock names longer than 64 characters
const maxLockNameLength = 64

type Locker struct {
	lockKey string
	lockFor int
	noLock  bool
}

var _ database.Locker = (*Locker)(nil)

func NewLocker(lockKey string, lockFor int, noLock bool) *Locker {
	return &Locker{lockKey: lockKey, lockFor: lockFor, noLock: noLock}
}

// TenantLockKey derives a per tenant lock name from the base key
func TenantLockKey(base, tenant string) string {
	key := base + ":" + tenant
	if len(key) <= maxLockNameLength {
		return key
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(tenant))
	return fmt.Sprintf("%s:%x", base, h.Sum64())
}

func (l *Locker) Lock(ctx context.Context, q database.Queryer) error {
	if l.noLock {
		return nil
	}

	var acquired sql.NullInt64
	if err := q.GetContext(ctx, &acquired, "SELECT GET_LOCK(?, ?)", l.lockKey, l.lockFor); err != nil {
		return errors.Wrapf(err, "could not obtain [%s] exclusive MySQL DB lock for [%d] seconds", l.lockKey, l.lockFor)
	}

	if !acquired.Valid || acquired.Int64 != 1 {
		return errors.Wrapf(database.ErrLockNotAcquired, "[%s] is held by another process", l.lockKey)
	}

	return nil
}

func (l *Locker) Unlock(ctx context.Context, q database.Queryer) error {
	if l.noLock {
		return nil
	}

	if _, err := q.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", l.lockKey); err != nil {
		return errors.Wrapf(err, "could not release [%s] exclusive MySQL DB lock", l.lockKey)
	}

	return nil
}
