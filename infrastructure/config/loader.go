package config

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported remote backends
const (
	BackendDrive = "drive"
	BackendS3    = "s3"
)

// s3MinPartSize mirrors the smallest multipart part S3 accepts
const s3MinPartSize = 5 * 1024 * 1024

// Config represents the complete application configuration
type Config struct {
	Backend string        `yaml:"backend"`
	Google  GoogleConfig  `yaml:"google"`
	S3      S3Config      `yaml:"s3"`
	Backup  BackupConfig  `yaml:"backup"`
	Reclaim ReclaimConfig `yaml:"reclaim"`
	Upload  UploadConfig  `yaml:"upload"`
	Email   EmailConfig   `yaml:"email"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// GoogleConfig contains Google API settings
type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	FolderID        string `yaml:"folder_id"`
}

// S3Config contains settings for the S3 backend
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	CapacityBytes   int64  `yaml:"capacity_bytes"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// BackupConfig describes where per-user backups are generated
type BackupConfig struct {
	Directory string `yaml:"directory"`
	Generator string `yaml:"generator"`
}

// ReclaimConfig bounds the space reclaim loop
type ReclaimConfig struct {
	PageSize     int           `yaml:"page_size"`
	MaxDeletions int           `yaml:"max_deletions"`
	Cooldown     time.Duration `yaml:"cooldown"`
}

// UploadConfig contains chunking settings
type UploadConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	ReadSize  int `yaml:"read_size"`
}

// EmailConfig contains alert sender settings
type EmailConfig struct {
	FromName    string `yaml:"from_name"`
	FromAddress string `yaml:"from_address"`
}

// LogConfig contains log sink settings
type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxBackups int    `yaml:"max_backups"`
}

// MetricsConfig contains metrics export settings
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Backend: BackendDrive,
		Google: GoogleConfig{
			CredentialsFile: "config/credentials.json",
			TokenFile:       "config/token.json",
		},
		Backup: BackupConfig{
			Directory: "/backup",
			Generator: "/usr/local/vesta/bin/v-backup-user",
		},
		Reclaim: ReclaimConfig{
			PageSize:     10,
			MaxDeletions: 100,
			Cooldown:     30 * time.Second,
		},
		Upload: UploadConfig{
			ChunkSize: 10 * 1024 * 1024,
			ReadSize:  8 * 1024,
		},
		Log: LogConfig{
			Level:      "info",
			MaxBackups: 5,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the result.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendDrive:
		if c.Google.CredentialsFile == "" {
			return fmt.Errorf("google.credentials_file is required for the drive backend")
		}
		if c.Google.TokenFile == "" {
			return fmt.Errorf("google.token_file is required for the drive backend")
		}
	case BackendS3:
		if err := c.validateS3(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid backend: %q (must be %q or %q)", c.Backend, BackendDrive, BackendS3)
	}

	if c.Reclaim.PageSize <= 0 {
		return fmt.Errorf("reclaim.page_size must be positive")
	}
	if c.Reclaim.MaxDeletions <= 0 {
		return fmt.Errorf("reclaim.max_deletions must be positive")
	}
	if c.Reclaim.Cooldown < 0 {
		return fmt.Errorf("reclaim.cooldown must be non-negative")
	}

	if c.Upload.ChunkSize <= 0 || c.Upload.ReadSize <= 0 {
		return fmt.Errorf("upload.chunk_size and upload.read_size must be positive")
	}
	if c.Upload.ReadSize > c.Upload.ChunkSize {
		return fmt.Errorf("upload.read_size (%d) must not exceed upload.chunk_size (%d)", c.Upload.ReadSize, c.Upload.ChunkSize)
	}

	if c.Email.FromAddress != "" {
		if _, err := mail.ParseAddress(c.Email.FromAddress); err != nil {
			return fmt.Errorf("invalid email.from_address: %w", err)
		}
	}

	return nil
}

func (c *Config) validateS3() error {
	if c.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required for the s3 backend")
	}
	if c.S3.Region == "" && c.S3.Endpoint == "" {
		return fmt.Errorf("s3.region is required for the s3 backend (unless s3.endpoint is set)")
	}
	if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
		return fmt.Errorf("s3.access_key_id and s3.secret_access_key must be set together")
	}
	if c.S3.CapacityBytes < 0 {
		return fmt.Errorf("s3.capacity_bytes must be non-negative")
	}
	if c.Upload.ChunkSize < s3MinPartSize {
		return fmt.Errorf("upload.chunk_size must be at least %d bytes for the s3 backend", s3MinPartSize)
	}
	return nil
}
