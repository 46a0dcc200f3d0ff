package ports

import "context"

// IdentityLocker serializes writes to a single identity. Lock blocks until
// the lock is held or ctx is done; the returned func releases it and is safe
// to call more than once.
type IdentityLocker interface {
	Lock(ctx context.Context, userID int64) (unlock func(), err error)
}
