//go:build integration

package steps

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gdrive-backup/application/appctx"
	appbackup "gdrive-backup/application/backup"
	"gdrive-backup/application/distribution"
	"gdrive-backup/cmd"
	"gdrive-backup/domain/backup"
	"gdrive-backup/infrastructure/drive"
	"gdrive-backup/infrastructure/filesystem"
	"gdrive-backup/infrastructure/vesta"

	"github.com/cucumber/godog"
	googledrive "google.golang.org/api/drive/v3"
)

const mib = 1024 * 1024

// backupMockDriveService simulates a Drive account whose usage follows its files
type backupMockDriveService struct {
	files          []*googledrive.File
	storageLimit   int64
	deletedFileIDs []string
	lagging        bool // usage ignores deletions
	calls          int
	nextID         int
}

func (m *backupMockDriveService) ListFiles(ctx context.Context, query, fields, orderBy string, pageSize int64) ([]*googledrive.File, error) {
	m.calls++
	var result []*googledrive.File
	for _, f := range m.files {
		if !m.isDeleted(f.Id) {
			result = append(result, f)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedTime < result[j].CreatedTime
	})
	if pageSize > 0 && int64(len(result)) > pageSize {
		result = result[:pageSize]
	}
	return result, nil
}

func (m *backupMockDriveService) GetAbout(ctx context.Context, fields string) (*googledrive.About, error) {
	m.calls++
	var usage int64
	for _, f := range m.files {
		if m.lagging || !m.isDeleted(f.Id) {
			usage += f.Size
		}
	}
	return &googledrive.About{
		StorageQuota: &googledrive.AboutStorageQuota{Limit: m.storageLimit, Usage: usage},
	}, nil
}

func (m *backupMockDriveService) DeleteFile(ctx context.Context, fileID string) error {
	m.calls++
	m.deletedFileIDs = append(m.deletedFileIDs, fileID)
	return nil
}

func (m *backupMockDriveService) isDeleted(id string) bool {
	for _, d := range m.deletedFileIDs {
		if d == id {
			return true
		}
	}
	return false
}

func (m *backupMockDriveService) addFile(name string, size int64) {
	m.nextID++
	m.files = append(m.files, &googledrive.File{
		Id:          fmt.Sprintf("file-%d", m.nextID),
		Name:        name,
		Size:        size,
		CreatedTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, m.nextID).Format(time.RFC3339),
	})
}

// uploadRecorder is the server side of the resumable upload protocol
type uploadRecorder struct {
	service  *backupMockDriveService
	name     string
	declared int64
	received []byte
	chunks   int
	done     bool
}

func (u *uploadRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var meta googledrive.File
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &meta)
		u.name = meta.Name
		u.declared, _ = strconv.ParseInt(r.Header.Get("X-Upload-Content-Length"), 10, 64)
		w.Header().Set("Location", "http://"+r.Host+"/session")
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		u.chunks++
		u.received = append(u.received, body...)
		if int64(len(u.received)) == u.declared {
			u.done = true
			u.service.addFile(u.name, u.declared)
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.Header().Set("Range", fmt.Sprintf("bytes=0-%d", len(u.received)-1))
		w.WriteHeader(308)
	case http.MethodDelete:
		w.WriteHeader(499)
	}
}

// backupContext holds test state for backup scenarios
type backupContext struct {
	mockService  *backupMockDriveService
	uploads      *uploadRecorder
	server       *httptest.Server
	dir          string
	localPath    string
	localData    []byte
	chunkSize    int
	maxDeletions int
	slept        time.Duration
	output       bytes.Buffer
	result       *appbackup.Result
	err          error
}

// SharedBackupContext is reset before each scenario via Before hook
var SharedBackupContext *backupContext

func getBackupContext() *backupContext {
	return SharedBackupContext
}

func InitializeBackupScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		dir, err := os.MkdirTemp("", "gdrive-backup-feature-")
		if err != nil {
			return c, err
		}
		svc := &backupMockDriveService{}
		rec := &uploadRecorder{service: svc}
		SharedBackupContext = &backupContext{
			mockService:  svc,
			uploads:      rec,
			server:       httptest.NewServer(rec),
			dir:          dir,
			chunkSize:    distribution.DefaultChunkSize,
			maxDeletions: distribution.DefaultMaxDeletions,
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if bc := getBackupContext(); bc != nil {
			bc.server.Close()
			os.RemoveAll(bc.dir)
		}
		SharedBackupContext = nil
		return c, nil
	})

	ctx.Step(`^a remote drive with (\d+) MiB total space$`, aRemoteDriveWithTotalSpace)
	ctx.Step(`^the remote holds (\d+) backups of (\d+) MiB each$`, theRemoteHoldsBackups)
	ctx.Step(`^the remote holds "([^"]*)" of (\d+) bytes$`, theRemoteHoldsFile)
	ctx.Step(`^storage accounting lags behind deletions$`, storageAccountingLags)
	ctx.Step(`^the deletion ceiling is (\d+)$`, theDeletionCeilingIs)
	ctx.Step(`^the upload chunk size is (\d+) MiB$`, theUploadChunkSizeIs)
	ctx.Step(`^a local backup "([^"]*)" of (\d+) (MiB|bytes)$`, aLocalBackup)
	ctx.Step(`^I run the backup$`, func() error { return iRunTheBackup(false) })
	ctx.Step(`^I run the backup keeping the local copy$`, func() error { return iRunTheBackup(true) })
	ctx.Step(`^I ask for the free space$`, iAskForTheFreeSpace)
	ctx.Step(`^the run succeeds$`, theRunSucceeds)
	ctx.Step(`^the run fails with "([^"]*)"$`, theRunFailsWith)
	ctx.Step(`^no backups are deleted$`, func() error { return backupsAreDeleted(0) })
	ctx.Step(`^(\d+) backups are deleted$`, backupsAreDeleted)
	ctx.Step(`^the oldest (\d+) backups are deleted$`, theOldestBackupsAreDeleted)
	ctx.Step(`^the cooldown waited (\d+) seconds$`, theCooldownWaited)
	ctx.Step(`^the file is uploaded in (\d+) chunks?$`, theFileIsUploadedInChunks)
	ctx.Step(`^the uploaded content matches the local file$`, theUploadedContentMatches)
	ctx.Step(`^nothing is uploaded$`, nothingIsUploaded)
	ctx.Step(`^the remote is not contacted$`, theRemoteIsNotContacted)
	ctx.Step(`^the local file is removed$`, theLocalFileIsRemoved)
	ctx.Step(`^the local file is kept$`, theLocalFileIsKept)
	ctx.Step(`^the output is exactly "([^"]*)"$`, theOutputIsExactly)
}

func aRemoteDriveWithTotalSpace(total int) error {
	getBackupContext().mockService.storageLimit = int64(total) * mib
	return nil
}

func theRemoteHoldsBackups(count, size int) error {
	svc := getBackupContext().mockService
	for i := 0; i < count; i++ {
		svc.addFile(fmt.Sprintf("admin.2026-01-%02d.tar", i+1), int64(size)*mib)
	}
	return nil
}

func theRemoteHoldsFile(name string, size int) error {
	getBackupContext().mockService.addFile(name, int64(size))
	return nil
}

func storageAccountingLags() error {
	getBackupContext().mockService.lagging = true
	return nil
}

func theDeletionCeilingIs(n int) error {
	getBackupContext().maxDeletions = n
	return nil
}

func theUploadChunkSizeIs(n int) error {
	getBackupContext().chunkSize = n * mib
	return nil
}

func aLocalBackup(name string, size int, unit string) error {
	bc := getBackupContext()
	n := size
	if unit == "MiB" {
		n = size * mib
	}
	bc.localData = make([]byte, n)
	if _, err := rand.Read(bc.localData); err != nil {
		return err
	}
	bc.localPath = filepath.Join(bc.dir, name)
	return os.WriteFile(bc.localPath, bc.localData, 0600)
}

func (bc *backupContext) newService() (*appbackup.Service, error) {
	client, err := drive.NewClient(context.Background(), bc.server.Client(),
		drive.WithDriveService(bc.mockService),
		drive.WithUploadURL(bc.server.URL+"/upload"),
	)
	if err != nil {
		return nil, err
	}

	env := appctx.New(client,
		appctx.WithOutput(&bc.output),
		appctx.WithSleep(func(d time.Duration) { bc.slept += d }),
	)
	return appbackup.NewService(env,
		vesta.NewLocator(vesta.WithDirectory(bc.dir)),
		filesystem.NewInspector(),
		distribution.NewReclaimer(env, distribution.WithMaxDeletions(bc.maxDeletions)),
		distribution.NewUploader(env, distribution.WithChunkSize(bc.chunkSize)),
	), nil
}

func iRunTheBackup(keepLocal bool) error {
	bc := getBackupContext()
	svc, err := bc.newService()
	if err != nil {
		return err
	}
	bc.result, bc.err = svc.Run(context.Background(), backup.Request{FilePath: bc.localPath, KeepLocal: keepLocal})
	return nil
}

func iAskForTheFreeSpace() error {
	bc := getBackupContext()
	svc, err := bc.newService()
	if err != nil {
		return err
	}
	bc.err = cmd.RunBackupWithDependencies(context.Background(), svc, backup.Request{}, true, &bc.output)
	return nil
}

func theRunSucceeds() error {
	if err := getBackupContext().err; err != nil {
		return fmt.Errorf("expected success, got: %v", err)
	}
	return nil
}

func theRunFailsWith(kind string) error {
	err := getBackupContext().err
	if err == nil {
		return fmt.Errorf("expected failure %q, run succeeded", kind)
	}
	if got := backup.KindOf(err).String(); got != kind {
		return fmt.Errorf("expected failure %q, got %q (%v)", kind, got, err)
	}
	return nil
}

func backupsAreDeleted(n int) error {
	if got := len(getBackupContext().mockService.deletedFileIDs); got != n {
		return fmt.Errorf("expected %d deletions, got %d", n, got)
	}
	return nil
}

func theOldestBackupsAreDeleted(n int) error {
	svc := getBackupContext().mockService
	if err := backupsAreDeleted(n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if want := svc.files[i].Id; svc.deletedFileIDs[i] != want {
			return fmt.Errorf("deletion %d removed %s, expected oldest %s", i+1, svc.deletedFileIDs[i], want)
		}
	}
	return nil
}

func theCooldownWaited(seconds int) error {
	if got := getBackupContext().slept; got != time.Duration(seconds)*time.Second {
		return fmt.Errorf("expected cooldown of %ds, waited %s", seconds, got)
	}
	return nil
}

func theFileIsUploadedInChunks(n int) error {
	if got := getBackupContext().uploads.chunks; got != n {
		return fmt.Errorf("expected %d chunks, got %d", n, got)
	}
	return nil
}

func theUploadedContentMatches() error {
	bc := getBackupContext()
	if !bc.uploads.done {
		return fmt.Errorf("upload did not complete")
	}
	if !bytes.Equal(bc.uploads.received, bc.localData) {
		return fmt.Errorf("uploaded %d bytes differ from local %d bytes", len(bc.uploads.received), len(bc.localData))
	}
	if bc.uploads.name != filepath.Base(bc.localPath) {
		return fmt.Errorf("uploaded as %q, expected %q", bc.uploads.name, filepath.Base(bc.localPath))
	}
	return nil
}

func nothingIsUploaded() error {
	if getBackupContext().uploads.chunks != 0 {
		return fmt.Errorf("expected no upload, got %d chunks", getBackupContext().uploads.chunks)
	}
	return nil
}

func theRemoteIsNotContacted() error {
	if calls := getBackupContext().mockService.calls; calls != 0 {
		return fmt.Errorf("expected no remote calls, got %d", calls)
	}
	return nothingIsUploaded()
}

func theLocalFileIsRemoved() error {
	if _, err := os.Stat(getBackupContext().localPath); !os.IsNotExist(err) {
		return fmt.Errorf("local file still exists")
	}
	return nil
}

func theLocalFileIsKept() error {
	if _, err := os.Stat(getBackupContext().localPath); err != nil {
		return fmt.Errorf("local file missing: %v", err)
	}
	return nil
}

func theOutputIsExactly(want string) error {
	if got := strings.TrimSuffix(getBackupContext().output.String(), "\n"); got != want {
		return fmt.Errorf("expected output %q, got %q", want, got)
	}
	return nil
}
