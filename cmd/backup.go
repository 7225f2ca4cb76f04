package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"gdrive-backup/application/appctx"
	appbackup "gdrive-backup/application/backup"
	"gdrive-backup/application/distribution"
	"gdrive-backup/domain/backup"
	"gdrive-backup/domain/notification"
	"gdrive-backup/domain/remote"
	"gdrive-backup/infrastructure/config"
	"gdrive-backup/infrastructure/drive"
	"gdrive-backup/infrastructure/filesystem"
	"gdrive-backup/infrastructure/gmail"
	googleauth "gdrive-backup/infrastructure/google"
	"gdrive-backup/infrastructure/logging"
	"gdrive-backup/infrastructure/metrics"
	s3store "gdrive-backup/infrastructure/s3"
	"gdrive-backup/infrastructure/vesta"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runBackup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		File:       cfg.Log.File,
		Level:      cfg.Log.Level,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	recorder := metrics.New()
	defer writeMetrics(logger, recorder, cfg.Metrics.Textfile)

	svc, err := newBackupService(ctx, cfg, opts, logger, recorder, os.Stdout)
	if err != nil {
		logging.Critical(logger, err.Error())
		return err
	}

	return RunBackupWithDependencies(ctx, svc, opts.request(), opts.getFreeSpace, os.Stdout)
}

// RunBackupWithDependencies runs a backup or free-space query with injected dependencies (for testing)
func RunBackupWithDependencies(
	ctx context.Context,
	svc *appbackup.Service,
	req backup.Request,
	getFreeSpace bool,
	output io.Writer,
) error {
	if getFreeSpace {
		free, err := svc.FreeSpace(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(output, free)
		return nil
	}

	result, err := svc.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintln(output, "=== Backup Complete ===")
	switch result.Outcome {
	case appbackup.OutcomeAlreadyPresent:
		fmt.Fprintf(output, "Already in remote storage: %s\n", result.Source.Path)
	default:
		fmt.Fprintf(output, "Uploaded: %s (%s)\n", result.Source.Path, appctx.Bytes(result.Source.Size))
		if result.Reclaim != nil {
			fmt.Fprintf(output, "Deleted %d old backup(s), freeing %s\n",
				len(result.Reclaim.Deleted), appctx.Bytes(result.Reclaim.FreedBytes()))
		}
	}

	return nil
}

func (o runOptions) request() backup.Request {
	return backup.Request{
		FilePath:  o.file,
		UserID:    o.user,
		KeepLocal: o.saveLocalCopy,
		NotifyTo:  o.email,
	}
}

// newBackupService wires the configured backend, notifier and local collaborators
func newBackupService(
	ctx context.Context,
	cfg *config.Config,
	o runOptions,
	logger *zap.Logger,
	recorder *metrics.Recorder,
	output io.Writer,
) (*appbackup.Service, error) {
	creds := &lazyCredentials{provider: googleauth.NewProvider(googleauth.Config{
		CredentialsFile: cfg.Google.CredentialsFile,
		TokenFile:       cfg.Google.TokenFile,
	})}

	store, err := newStore(ctx, cfg, creds)
	if err != nil {
		return nil, err
	}

	envOpts := []appctx.Option{
		appctx.WithLogger(logger),
		appctx.WithMetrics(recorder),
		appctx.WithOutput(output),
	}
	if o.email != "" && !o.getFreeSpace {
		notifier, err := newNotifier(ctx, cfg, creds)
		if err != nil {
			logger.Warn("Email alerts disabled", zap.Error(err))
		} else {
			envOpts = append(envOpts, appctx.WithNotifier(notifier))
		}
	}
	env := appctx.New(store, envOpts...)

	locator := vesta.NewLocator(
		vesta.WithDirectory(cfg.Backup.Directory),
		vesta.WithGenerator(cfg.Backup.Generator),
		vesta.WithLogger(logger),
	)
	reclaimer := distribution.NewReclaimer(env,
		distribution.WithMaxDeletions(cfg.Reclaim.MaxDeletions),
		distribution.WithCooldown(cfg.Reclaim.Cooldown),
	)
	uploader := distribution.NewUploader(env,
		distribution.WithChunkSize(cfg.Upload.ChunkSize),
		distribution.WithReadSize(cfg.Upload.ReadSize),
	)

	return appbackup.NewService(env, locator, filesystem.NewInspector(), reclaimer, uploader,
		appbackup.WithPageSize(cfg.Reclaim.PageSize),
	), nil
}

func newStore(ctx context.Context, cfg *config.Config, creds *lazyCredentials) (remote.Store, error) {
	if cfg.Backend == config.BackendS3 {
		store, err := s3store.NewStore(ctx, s3store.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			Prefix:          cfg.S3.Prefix,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			CapacityBytes:   cfg.S3.CapacityBytes,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 store: %w", err)
		}
		return store, nil
	}

	httpClient, err := creds.client(ctx)
	if err != nil {
		return nil, err
	}
	client, err := drive.NewClient(ctx, httpClient, drive.WithFolderID(cfg.Google.FolderID))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Drive client: %w", err)
	}
	return client, nil
}

func newNotifier(ctx context.Context, cfg *config.Config, creds *lazyCredentials) (notification.EmailSender, error) {
	httpClient, err := creds.client(ctx)
	if err != nil {
		return nil, err
	}

	var opts []gmail.ClientOption
	if cfg.Email.FromAddress != "" {
		opts = append(opts, gmail.WithFrom(notification.Recipient{
			Name:    cfg.Email.FromName,
			Address: cfg.Email.FromAddress,
		}))
	}
	client, err := gmail.NewClient(ctx, httpClient, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail client: %w", err)
	}
	return client, nil
}

// lazyCredentials authorises at most once, and only when a Google service is used
type lazyCredentials struct {
	provider *googleauth.Provider
	http     *http.Client
}

func (l *lazyCredentials) client(ctx context.Context) (*http.Client, error) {
	if l.http != nil {
		return l.http, nil
	}
	c, err := l.provider.HTTPClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to authorise with Google: %w", err)
	}
	l.http = c
	return c, nil
}

func writeMetrics(logger *zap.Logger, recorder *metrics.Recorder, path string) {
	if path == "" {
		return
	}
	if err := recorder.WriteTextfile(path); err != nil {
		logger.Warn("Failed to write metrics", zap.Error(err))
	}
}
