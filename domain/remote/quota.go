package remote

import "math"

// Quota represents account-level storage accounting
type Quota struct {
	TotalBytes int64
	UsedBytes  int64
	Unlimited  bool // The service reported no storage limit
}

// FreeBytes returns the bytes still available under the quota
func (q Quota) FreeBytes() int64 {
	if q.Unlimited {
		return math.MaxInt64
	}
	return q.TotalBytes - q.UsedBytes
}

// HasSpaceFor returns true if there's enough free space for the given bytes
func (q Quota) HasSpaceFor(bytes int64) bool {
	return q.FreeBytes() >= bytes
}

// CanEverHold returns false if size exceeds the total capacity, in which case
// no amount of deletion can make room
func (q Quota) CanEverHold(size int64) bool {
	return q.Unlimited || size <= q.TotalBytes
}
