package distribution

import (
	"context"
	"fmt"
	"time"

	"gdrive-backup/application/appctx"
	"gdrive-backup/domain/backup"
	"gdrive-backup/domain/remote"

	"go.uber.org/zap"
)

const (
	// DefaultMaxDeletions bounds the reclaim loop
	DefaultMaxDeletions = 100

	// DefaultCooldown is the wait after deleting for the quota accounting to catch up
	DefaultCooldown = 30 * time.Second

	cooldownTick = time.Second
)

// Reclaimer deletes the oldest remote objects until an upload fits
type Reclaimer struct {
	env          *appctx.Env
	maxDeletions int
	cooldown     time.Duration
}

// ReclaimerOption is a functional option for configuring Reclaimer
type ReclaimerOption func(*Reclaimer)

// WithMaxDeletions sets the deletion ceiling
func WithMaxDeletions(n int) ReclaimerOption {
	return func(r *Reclaimer) {
		r.maxDeletions = n
	}
}

// WithCooldown sets the wait after the last deletion
func WithCooldown(d time.Duration) ReclaimerOption {
	return func(r *Reclaimer) {
		r.cooldown = d
	}
}

// NewReclaimer creates a new reclaimer
func NewReclaimer(env *appctx.Env, opts ...ReclaimerOption) *Reclaimer {
	r := &Reclaimer{
		env:          env,
		maxDeletions: DefaultMaxDeletions,
		cooldown:     DefaultCooldown,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Reclaim deletes candidates from the head of the list until freeBytes reaches
// requiredBytes. Free space is re-read from the store after every deletion since
// the service's accounting may lag. The candidate list is not re-fetched.
func (r *Reclaimer) Reclaim(ctx context.Context, freeBytes, requiredBytes int64, candidates []remote.Object) (*remote.ReclaimResult, error) {
	log := r.env.Logger
	result := &remote.ReclaimResult{FreeBytes: freeBytes}
	queue := candidates
	attempts := 0

	for result.FreeBytes < requiredBytes {
		if attempts > r.maxDeletions {
			return result, backup.Errorf(backup.KindReclaimLoopExceeded,
				"something went wrong while clearing space, did over %d loops", r.maxDeletions)
		}
		if len(queue) == 0 {
			return result, backup.Errorf(backup.KindCandidatesExhausted,
				"no more objects to delete: %s free, %s needed",
				appctx.Bytes(result.FreeBytes), appctx.Bytes(requiredBytes))
		}

		log.Info(fmt.Sprintf("Remote storage has only %s, while filesize is %s, will clear some space...",
			appctx.Bytes(result.FreeBytes), appctx.Bytes(requiredBytes)))
		attempts++

		oldest := queue[0]
		if err := r.env.Store.DeleteObject(ctx, oldest.ID); err != nil {
			return result, backup.Wrap(backup.KindDeleteFailed, err, "an error occurred while deleting %s", oldest.Name)
		}
		queue = queue[1:]
		result.Deleted = append(result.Deleted, oldest)
		result.Remaining = queue
		r.env.Metrics.RecordDeletion(oldest.Size)

		log.Info("Object deleted", zap.String("name", oldest.Name), zap.String("id", oldest.ID), zap.Int64("size", oldest.Size))
		fmt.Fprintf(r.env.Output, "      Removed: %s (%s)\n", oldest.Name, appctx.Bytes(oldest.Size))

		quota, err := r.env.Store.GetQuota(ctx)
		if err != nil {
			return result, backup.Wrap(backup.KindQuotaUnavailable, err, "failed to re-read free space after deleting %s", oldest.Name)
		}
		result.FreeBytes = quota.FreeBytes()
		r.env.Metrics.SetFreeBytes(result.FreeBytes)
		log.Info("Now remote storage has " + appctx.Bytes(result.FreeBytes))
	}

	result.Remaining = queue
	if len(result.Deleted) > 0 {
		r.wait()
	}

	return result, nil
}

// wait blocks for the cooldown, emitting one marker per elapsed second
func (r *Reclaimer) wait() {
	if r.cooldown <= 0 {
		return
	}
	r.env.Logger.Info(fmt.Sprintf("Sleeping for %s for the remote service to update free space...", r.cooldown))

	for left := r.cooldown; left > 0; {
		step := min(cooldownTick, left)
		r.env.Sleep(step)
		left -= step
		fmt.Fprint(r.env.Output, ".")
	}
	fmt.Fprintln(r.env.Output)
}
