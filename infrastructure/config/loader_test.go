package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Backend != BackendDrive {
		t.Errorf("Backend = %q, want drive", cfg.Backend)
	}
	if cfg.Reclaim.MaxDeletions != 100 || cfg.Reclaim.PageSize != 10 || cfg.Reclaim.Cooldown != 30*time.Second {
		t.Errorf("Reclaim = %+v", cfg.Reclaim)
	}
	if cfg.Upload.ChunkSize != 10*1024*1024 || cfg.Upload.ReadSize != 8*1024 {
		t.Errorf("Upload = %+v", cfg.Upload)
	}
	if cfg.Backup.Generator != "/usr/local/vesta/bin/v-backup-user" || cfg.Backup.Directory != "/backup" {
		t.Errorf("Backup = %+v", cfg.Backup)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
google:
  folder_id: "folder-1"
reclaim:
  cooldown: 5s
  max_deletions: 7
email:
  from_name: "Backup Bot"
  from_address: "backup@example.com"
log:
  file: /var/log/gdrive-backup.log
  level: debug
metrics:
  textfile: /var/lib/node_exporter/gdrive_backup.prom
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Google.FolderID != "folder-1" {
		t.Errorf("FolderID = %q", cfg.Google.FolderID)
	}
	// untouched keys keep their defaults
	if cfg.Google.CredentialsFile != "config/credentials.json" {
		t.Errorf("CredentialsFile = %q", cfg.Google.CredentialsFile)
	}
	if cfg.Reclaim.Cooldown != 5*time.Second || cfg.Reclaim.MaxDeletions != 7 || cfg.Reclaim.PageSize != 10 {
		t.Errorf("Reclaim = %+v", cfg.Reclaim)
	}
	if cfg.Log.Level != "debug" || cfg.Log.File != "/var/log/gdrive-backup.log" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Metrics.Textfile == "" {
		t.Error("Metrics.Textfile not loaded")
	}
}

func TestLoad_S3Backend(t *testing.T) {
	path := writeConfig(t, `
backend: s3
s3:
  bucket: backups
  endpoint: http://127.0.0.1:9000
  prefix: hosting
  access_key_id: key
  secret_access_key: secret
  capacity_bytes: 10737418240
  use_path_style: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.S3.Bucket != "backups" || !cfg.S3.UsePathStyle || cfg.S3.CapacityBytes != 10737418240 {
		t.Errorf("S3 = %+v", cfg.S3)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{name: "malformed yaml", content: "backend: [", errMsg: "failed to parse config file"},
		{name: "unknown backend", content: "backend: ftp", errMsg: "invalid backend"},
		{name: "bad duration", content: "reclaim:\n  cooldown: soon", errMsg: "failed to parse config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{name: "defaults are valid", modify: func(c *Config) {}},
		{name: "missing credentials file", modify: func(c *Config) { c.Google.CredentialsFile = "" }, wantErr: true},
		{name: "missing token file", modify: func(c *Config) { c.Google.TokenFile = "" }, wantErr: true},
		{name: "zero page size", modify: func(c *Config) { c.Reclaim.PageSize = 0 }, wantErr: true},
		{name: "zero max deletions", modify: func(c *Config) { c.Reclaim.MaxDeletions = 0 }, wantErr: true},
		{name: "negative cooldown", modify: func(c *Config) { c.Reclaim.Cooldown = -time.Second }, wantErr: true},
		{name: "zero cooldown", modify: func(c *Config) { c.Reclaim.Cooldown = 0 }},
		{name: "read larger than chunk", modify: func(c *Config) { c.Upload.ReadSize = c.Upload.ChunkSize + 1 }, wantErr: true},
		{name: "invalid from address", modify: func(c *Config) { c.Email.FromAddress = "nope" }, wantErr: true},
		{
			name:    "s3 without bucket",
			modify:  func(c *Config) { c.Backend = BackendS3; c.S3.Region = "eu-west-1" },
			wantErr: true,
		},
		{
			name:    "s3 without region or endpoint",
			modify:  func(c *Config) { c.Backend = BackendS3; c.S3.Bucket = "b" },
			wantErr: true,
		},
		{
			name: "s3 with half credentials",
			modify: func(c *Config) {
				c.Backend = BackendS3
				c.S3 = S3Config{Bucket: "b", Region: "eu-west-1", AccessKeyID: "key"}
			},
			wantErr: true,
		},
		{
			name: "s3 chunk below part minimum",
			modify: func(c *Config) {
				c.Backend = BackendS3
				c.S3 = S3Config{Bucket: "b", Region: "eu-west-1"}
				c.Upload.ChunkSize = 1024 * 1024
			},
			wantErr: true,
		},
		{
			name: "s3 valid",
			modify: func(c *Config) {
				c.Backend = BackendS3
				c.S3 = S3Config{Bucket: "b", Region: "eu-west-1"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
