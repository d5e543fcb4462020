package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where recall stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// RetentionSweepInterval is how often the background retention runner
	// walks all users and enforces their retention policies.
	RetentionSweepInterval time.Duration
	// ArchiveThresholdDays is the default age past which conversations are
	// archived by the retention service.
	ArchiveThresholdDays int

	// EncryptionKey encrypts sensitive message content at rest. Empty
	// disables encryption even when a user's settings request it.
	EncryptionKey string // RECALL_ENCRYPTION_KEY

	// Embedding provider configuration. Semantic search is disabled when no
	// API key is configured.
	EmbeddingAPIKey  string // RECALL_EMBEDDING_API_KEY
	EmbeddingBaseURL string // RECALL_EMBEDDING_BASE_URL (default: https://api.openai.com/v1)
	EmbeddingModel   string // RECALL_EMBEDDING_MODEL (default: text-embedding-3-small)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsSemanticSearchEnabled returns true if an embedding provider is configured
// and the backing driver can answer vector queries.
func (p *Profile) IsSemanticSearchEnabled() bool {
	return p.EmbeddingAPIKey != "" && p.Driver == "postgres"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from RECALL_* environment variables.
func (p *Profile) FromEnv() {
	p.EncryptionKey = getEnvOrDefault("RECALL_ENCRYPTION_KEY", p.EncryptionKey)
	p.EmbeddingAPIKey = getEnvOrDefault("RECALL_EMBEDDING_API_KEY", p.EmbeddingAPIKey)
	p.EmbeddingBaseURL = getEnvOrDefault("RECALL_EMBEDDING_BASE_URL", "https://api.openai.com/v1")
	p.EmbeddingModel = getEnvOrDefault("RECALL_EMBEDDING_MODEL", "text-embedding-3-small")

	if v := os.Getenv("RECALL_RETENTION_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			p.RetentionSweepInterval = d
		}
	}
	if v := os.Getenv("RECALL_ARCHIVE_THRESHOLD_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.ArchiveThresholdDays = n
		}
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "recall")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/recall"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("recall_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	if p.RetentionSweepInterval <= 0 {
		p.RetentionSweepInterval = 24 * time.Hour
	}
	if p.ArchiveThresholdDays <= 0 {
		p.ArchiveThresholdDays = 365
	}

	return nil
}
