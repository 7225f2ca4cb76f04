package remote

// Transfer tracks one chunked upload attempt
type Transfer struct {
	TargetName string // Object name on the remote service
	TotalSize  int64  // Size of the local source in bytes
	ChunkSize  int64  // Target bytes per chunk
	BytesSent  int64  // Bytes acknowledged so far
	Chunks     int    // Chunks submitted
	Done       bool   // The service reported completion
}

// Remaining returns the bytes not yet sent
func (t *Transfer) Remaining() int64 {
	return t.TotalSize - t.BytesSent
}

// ReclaimResult contains information about objects deleted to free space
type ReclaimResult struct {
	Deleted   []Object // Deleted objects, in deletion order
	Remaining []Object // Candidates that were not needed
	FreeBytes int64    // Free space as last reported by the service
}

// FreedBytes returns the combined listed size of the deleted objects
func (r *ReclaimResult) FreedBytes() int64 {
	var total int64
	for _, o := range r.Deleted {
		total += o.Size
	}
	return total
}
