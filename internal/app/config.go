package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/guildmind-backend/internal/pkg/envutil"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
)

// Config is the single validated configuration record, loaded once at
// startup. A YAML file (CONFIG_FILE) supplies base values; environment
// variables override it.
type Config struct {
	VectorDim int `yaml:"vector_dim"`

	SessionTimeGap     time.Duration `yaml:"session_time_gap"`
	SessionMaxTokens   int           `yaml:"session_max_tokens"`
	SessionMinMessages int           `yaml:"session_min_messages"`
	SessionWindow      int           `yaml:"session_window"`

	RefineThresholdMessages int     `yaml:"session_semantic_refine_threshold_messages"`
	RefinePercentile        float64 `yaml:"session_semantic_percentile"`

	JobMaxAttempts    int           `yaml:"job_max_attempts"`
	JobBackoffBase    time.Duration `yaml:"job_backoff_base"`
	JobBackoffCap     time.Duration `yaml:"job_backoff_cap"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	WorkerConcurrency int           `yaml:"worker_concurrency"`
	QueueBackpressure int64         `yaml:"queue_backpressure_hi"`
	DedupWindow       time.Duration `yaml:"job_dedup_window"`

	ReconcilerInterval time.Duration `yaml:"reconciler_interval"`
	ReconcilerBatch    int           `yaml:"reconciler_batch"`

	MaxTextBytes  int64 `yaml:"attachment_max_size_text"`
	MaxPDFBytes   int64 `yaml:"attachment_max_size_pdf"`
	MaxImageBytes int64 `yaml:"attachment_max_size_image"`

	BlockedExtensions []string `yaml:"blocked_attachment_extensions"`

	BackfillPage int `yaml:"backfill_page"`

	ChunkMinTokens int `yaml:"chunk_min_tokens"`
}

func defaults() Config {
	return Config{
		SessionTimeGap:          15 * time.Minute,
		SessionMaxTokens:        480,
		SessionMinMessages:      2,
		SessionWindow:           200,
		RefineThresholdMessages: 20,
		RefinePercentile:        5,
		JobMaxAttempts:          5,
		JobBackoffBase:          1 * time.Second,
		JobBackoffCap:           600 * time.Second,
		VisibilityTimeout:       5 * time.Minute,
		WorkerConcurrency:       4,
		QueueBackpressure:       10_000,
		DedupWindow:             5 * time.Minute,
		ReconcilerInterval:      15 * time.Minute,
		ReconcilerBatch:         200,
		MaxTextBytes:            2 << 20,
		MaxPDFBytes:             20 << 20,
		MaxImageBytes:           10 << 20,
		BlockedExtensions:       []string{".exe", ".bat", ".sh", ".ps1", ".cmd"},
		BackfillPage:            500,
		ChunkMinTokens:          32,
	}
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", path, err)
		}
		log.Info("Loaded config overlay", "path", path)
	}

	// Env always wins over file values.
	cfg.VectorDim = envutil.Int("VECTOR_DIM", cfg.VectorDim)
	cfg.SessionTimeGap = envutil.Duration("SESSION_TIME_GAP", cfg.SessionTimeGap)
	cfg.SessionMaxTokens = envutil.Int("SESSION_MAX_TOKENS", cfg.SessionMaxTokens)
	cfg.SessionMinMessages = envutil.Int("SESSION_MIN_MESSAGES", cfg.SessionMinMessages)
	cfg.SessionWindow = envutil.Int("SESSION_WINDOW", cfg.SessionWindow)
	cfg.RefineThresholdMessages = envutil.Int("SESSION_SEMANTIC_REFINE_THRESHOLD_MESSAGES", cfg.RefineThresholdMessages)
	cfg.RefinePercentile = envutil.Float("SESSION_SEMANTIC_PERCENTILE", cfg.RefinePercentile)
	cfg.JobMaxAttempts = envutil.Int("JOB_MAX_ATTEMPTS", cfg.JobMaxAttempts)
	cfg.JobBackoffBase = envutil.Duration("JOB_BACKOFF_BASE", cfg.JobBackoffBase)
	cfg.JobBackoffCap = envutil.Duration("JOB_BACKOFF_CAP", cfg.JobBackoffCap)
	cfg.VisibilityTimeout = envutil.Duration("VISIBILITY_TIMEOUT", cfg.VisibilityTimeout)
	cfg.WorkerConcurrency = envutil.Int("WORKER_CONCURRENCY", cfg.WorkerConcurrency)
	cfg.QueueBackpressure = envutil.Int64("QUEUE_BACKPRESSURE_HI", cfg.QueueBackpressure)
	cfg.DedupWindow = envutil.Duration("JOB_DEDUP_WINDOW", cfg.DedupWindow)
	cfg.ReconcilerInterval = envutil.Duration("RECONCILER_INTERVAL", cfg.ReconcilerInterval)
	cfg.ReconcilerBatch = envutil.Int("RECONCILER_BATCH", cfg.ReconcilerBatch)
	cfg.MaxTextBytes = envutil.Int64("ATTACHMENT_MAX_SIZE_TEXT", cfg.MaxTextBytes)
	cfg.MaxPDFBytes = envutil.Int64("ATTACHMENT_MAX_SIZE_PDF", cfg.MaxPDFBytes)
	cfg.MaxImageBytes = envutil.Int64("ATTACHMENT_MAX_SIZE_IMAGE", cfg.MaxImageBytes)
	cfg.BackfillPage = envutil.Int("BACKFILL_PAGE", cfg.BackfillPage)
	cfg.ChunkMinTokens = envutil.Int("CHUNK_MIN_TOKENS", cfg.ChunkMinTokens)
	if raw := strings.TrimSpace(os.Getenv("BLOCKED_ATTACHMENT_EXTENSIONS")); raw != "" {
		parts := strings.Split(raw, ",")
		exts := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.ToLower(strings.TrimSpace(p))
			if p == "" {
				continue
			}
			if !strings.HasPrefix(p, ".") {
				p = "." + p
			}
			exts = append(exts, p)
		}
		cfg.BlockedExtensions = exts
	}

	return cfg, validate(cfg)
}

func validate(cfg Config) error {
	if cfg.VectorDim <= 0 {
		return fmt.Errorf("VECTOR_DIM is required and must be positive")
	}
	if cfg.SessionMaxTokens <= 0 {
		return fmt.Errorf("session_max_tokens must be positive")
	}
	if cfg.JobMaxAttempts <= 0 {
		return fmt.Errorf("job_max_attempts must be positive")
	}
	if cfg.JobBackoffCap < cfg.JobBackoffBase {
		return fmt.Errorf("job_backoff_cap must be >= job_backoff_base")
	}
	if cfg.WorkerConcurrency <= 0 {
		return fmt.Errorf("worker_concurrency must be positive")
	}
	return nil
}
