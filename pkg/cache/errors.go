package cache

import "fmt"

// CacheError describes a failed cache operation. It is logged and counted
// but never returned to callers of PersistentCache.
type CacheError struct {
	Op    string
	Scope string
	Err   error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Scope, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}
