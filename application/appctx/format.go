package appctx

import humanize "github.com/dustin/go-humanize"

// Bytes formats a byte count for logs, e.g. "10 MiB"
func Bytes(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}
