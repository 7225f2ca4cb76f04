package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"gdrive-backup/application/appctx"
	"gdrive-backup/application/distribution"
	appnotif "gdrive-backup/application/notification"
	"gdrive-backup/domain/backup"
	"gdrive-backup/domain/remote"
	"gdrive-backup/infrastructure/logging"
	"gdrive-backup/infrastructure/metrics"

	"go.uber.org/zap"
)

// DefaultPageSize is how many remote objects are listed for dedup and eviction
const DefaultPageSize = 10

// Outcome describes how a successful run ended
type Outcome int

const (
	// OutcomeUploaded means the file was uploaded
	OutcomeUploaded Outcome = iota
	// OutcomeAlreadyPresent means an object with the same name and size already exists
	OutcomeAlreadyPresent
)

func (o Outcome) String() string {
	if o == OutcomeAlreadyPresent {
		return metrics.OutcomeAlreadyPresent
	}
	return metrics.OutcomeUploaded
}

// Result contains the results of a backup run
type Result struct {
	Outcome      Outcome
	Source       backup.SourceFile
	Reclaim      *remote.ReclaimResult // nil when no space had to be reclaimed
	Transfer     *remote.Transfer
	LocalRemoved bool
}

// Service orchestrates a complete backup run
type Service struct {
	env       *appctx.Env
	locator   backup.Locator
	files     backup.LocalFiles
	reclaimer *distribution.Reclaimer
	uploader  *distribution.Uploader
	alerts    *appnotif.Service
	pageSize  int
}

// Option is a functional option for configuring Service
type Option func(*Service)

// WithPageSize sets how many remote objects are listed
func WithPageSize(n int) Option {
	return func(s *Service) {
		s.pageSize = n
	}
}

// NewService creates a new backup service
func NewService(
	env *appctx.Env,
	locator backup.Locator,
	files backup.LocalFiles,
	reclaimer *distribution.Reclaimer,
	uploader *distribution.Uploader,
	opts ...Option,
) *Service {
	s := &Service{
		env:       env,
		locator:   locator,
		files:     files,
		reclaimer: reclaimer,
		uploader:  uploader,
		pageSize:  DefaultPageSize,
	}
	if env.Notifier != nil {
		s.alerts = appnotif.NewService(env.Notifier)
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run executes the backup workflow. It is the only place where a failure is
// logged as critical and reported to the notification channel.
func (s *Service) Run(ctx context.Context, req backup.Request) (*Result, error) {
	result, err := s.run(ctx, req)
	if err != nil {
		s.env.Metrics.RecordRun(metrics.OutcomeFailed)
		s.fail(ctx, req, err)
		return result, err
	}

	s.env.Metrics.RecordRun(result.Outcome.String())
	s.env.Metrics.MarkSuccess(s.env.Now())
	return result, nil
}

// FreeSpace returns the remote free space in bytes
func (s *Service) FreeSpace(ctx context.Context) (int64, error) {
	quota, err := s.env.Store.GetQuota(ctx)
	if err != nil {
		return 0, backup.Wrap(backup.KindQuotaUnavailable, err, "an error occurred while getting free space")
	}
	return quota.FreeBytes(), nil
}

func (s *Service) run(ctx context.Context, req backup.Request) (*Result, error) {
	log := s.env.Logger
	out := s.env.Output
	result := &Result{}

	// Validating: nothing remote is touched until the local file checks out
	fmt.Fprintf(out, "[1/5] Validating source...\n")
	if err := req.Validate(); err != nil {
		return nil, err
	}

	src, err := s.resolveSource(ctx, req)
	if err != nil {
		return nil, err
	}
	result.Source = src
	name := filepath.Base(src.Path)
	fmt.Fprintf(out, "      Source: %s (%s)\n\n", src.Path, appctx.Bytes(src.Size))

	// SpaceCheck
	fmt.Fprintf(out, "[2/5] Checking remote storage...\n")
	quota, err := s.env.Store.GetQuota(ctx)
	if err != nil {
		return result, backup.Wrap(backup.KindQuotaUnavailable, err, "an error occurred while getting remote quota")
	}
	if !quota.CanEverHold(src.Size) {
		return result, backup.Errorf(backup.KindTooLarge, "file %s, size: %s, which is over remote total space: %s",
			src.Path, appctx.Bytes(src.Size), appctx.Bytes(quota.TotalBytes))
	}

	objects, err := s.env.Store.ListObjects(ctx, s.pageSize)
	if err != nil {
		return result, backup.Wrap(backup.KindListFailed, err, "failed to list remote objects")
	}
	for _, obj := range objects {
		if obj.Name == name && obj.Size == src.Size {
			log.Info(fmt.Sprintf("File %s with exact size is already in remote storage...", name))
			fmt.Fprintf(out, "      Already uploaded: %s\n", name)
			result.Outcome = OutcomeAlreadyPresent
			return result, nil
		}
	}

	free := quota.FreeBytes()
	s.env.Metrics.SetFreeBytes(free)
	log.Info("Remote storage status",
		zap.String("total", s.totalLabel(quota)),
		zap.String("free", appctx.Bytes(free)),
		zap.String("file", src.Path),
		zap.String("size", appctx.Bytes(src.Size)),
	)
	fmt.Fprintf(out, "      Free: %s\n\n", appctx.Bytes(free))

	// Reconciling
	fmt.Fprintf(out, "[3/5] Reclaiming space...\n")
	if free < src.Size {
		reclaim, err := s.reclaimer.Reclaim(ctx, free, src.Size, objects)
		result.Reclaim = reclaim
		if err != nil {
			return result, err
		}
	} else {
		fmt.Fprintf(out, "      Storage OK\n")
	}
	fmt.Fprintln(out)

	// Uploading
	log.Info("Moving on to upload procedure...")
	fmt.Fprintf(out, "[4/5] Uploading %s...\n", name)
	transfer, err := s.uploader.Upload(ctx, src.Path, name)
	result.Transfer = transfer
	if err != nil {
		return result, err
	}
	log.Info(fmt.Sprintf("File: %s successfully uploaded!", src.Path), zap.Int("chunks", transfer.Chunks))
	fmt.Fprintf(out, "      Uploaded: %s in %d chunk(s)\n\n", name, transfer.Chunks)

	// Finalizing
	fmt.Fprintf(out, "[5/5] Finalizing...\n")
	if req.KeepLocal {
		fmt.Fprintf(out, "      Keeping local copy\n")
		return result, nil
	}
	log.Info(fmt.Sprintf("Removing %s...", src.Path))
	if err := s.files.Remove(src.Path); err != nil {
		log.Warn("Failed to remove local copy", zap.String("file", src.Path), zap.Error(err))
		return result, nil
	}
	result.LocalRemoved = true
	fmt.Fprintf(out, "      Removed local copy\n")

	return result, nil
}

// resolveSource finds the file to upload and checks it exists, is accessible and is not empty
func (s *Service) resolveSource(ctx context.Context, req backup.Request) (backup.SourceFile, error) {
	path := req.FilePath
	if req.UserID != "" {
		date := req.Date
		if date.IsZero() {
			date = s.env.Now()
		}
		s.env.Logger.Info(fmt.Sprintf("userName: %s, will check if backup already exists", req.UserID))

		located, err := s.locator.Locate(ctx, req.UserID, date)
		if err != nil {
			return backup.SourceFile{}, backup.Wrap(backup.KindBackupGeneration, err,
				"something went wrong making backup for user: %s", req.UserID)
		}
		path = located
	}

	src, err := s.files.Inspect(path)
	if err != nil {
		return backup.SourceFile{}, backup.Wrap(backup.KindSourceUnavailable, err,
			"file %s does not exist or is not writable", path)
	}
	if src.Size == 0 {
		return src, backup.Errorf(backup.KindSourceEmpty, "file %s is empty", path)
	}
	return src, nil
}

func (s *Service) totalLabel(q remote.Quota) string {
	if q.Unlimited {
		return "unlimited"
	}
	return appctx.Bytes(q.TotalBytes)
}

func (s *Service) fail(ctx context.Context, req backup.Request, err error) {
	logging.Critical(s.env.Logger, err.Error(), zap.Stringer("kind", backup.KindOf(err)))

	if s.alerts == nil || req.NotifyTo == "" {
		return
	}
	// Best effort: the run has already failed
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if nerr := s.alerts.Notify(notifyCtx, req.NotifyTo, err.Error(), ""); nerr != nil {
		s.env.Logger.Warn("Failed to send failure notification", zap.Error(nerr))
	}
}
