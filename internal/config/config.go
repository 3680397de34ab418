package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"DataPaperIndex/internal/journal"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "DATAPAPER_CONFIG"
	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	llmAPIKeyEnv      = "DEEPSEEK_API_KEY"
	llmModelEnv       = "LLM_MODEL"
	llmBaseURLEnv     = "LLM_BASE_URL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	s3BucketEnv       = "S3_BUCKET"
	logLevelEnv       = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	LLM           LLMConfig          `yaml:"llm"`
	Harvest       HarvestConfig      `yaml:"harvest"`
	Enrichment    EnrichmentConfig   `yaml:"enrichment"`
	Export        ExportConfig       `yaml:"export"`
	Archive       ArchiveConfig      `yaml:"archive"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
	Journals      []JournalConfig    `yaml:"journals"`
}

// DatabaseConfig selects the catalog backend: postgres, mysql or file.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Path   string `yaml:"path"`
}

// LLMConfig describes the OpenAI-compatible enrichment endpoint.
type LLMConfig struct {
	BaseURL    string        `yaml:"baseUrl"`
	Model      string        `yaml:"model"`
	APIKey     string        `yaml:"apiKey"`
	Timeout    time.Duration `yaml:"timeout"`
	Attempts   uint          `yaml:"attempts"`
	RetryDelay time.Duration `yaml:"retryDelay"`
	MaxJitter  time.Duration `yaml:"maxJitter"`
}

// HarvestConfig tunes feed fetching and abstract backfill.
type HarvestConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	FeedConcurrency   int           `yaml:"feedConcurrency"`
	MinAbstractLength int           `yaml:"minAbstractLength"`
}

// EnrichmentConfig holds the cooperative throttle between model calls.
type EnrichmentConfig struct {
	CallPause      time.Duration `yaml:"callPause"`
	BatchPause     time.Duration `yaml:"batchPause"`
	BatchSize      int           `yaml:"batchSize"`
	DefaultJournal string        `yaml:"defaultJournal"`
}

// ExportConfig locates the interchange snapshot and its backups.
type ExportConfig struct {
	SnapshotPath string `yaml:"snapshotPath"`
	BackupDir    string `yaml:"backupDir"`
}

// ArchiveConfig enables S3 uploads of the snapshot when Bucket is set.
type ArchiveConfig struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	Endpoint string `yaml:"endpoint"`
}

// SchedulerConfig defines how often the pipeline should run.
type SchedulerConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	BaseURL  string `yaml:"baseUrl"`
}

// LoggingConfig sets the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// JournalConfig describes a single journal feed with its scanner strategy.
type JournalConfig struct {
	Name             string            `yaml:"name"`
	Feed             string            `yaml:"feed"`
	Scanner          string            `yaml:"scanner"`
	DateLayouts      []string          `yaml:"dateLayouts"`
	ReliableAbstract bool              `yaml:"reliableAbstract"`
	Options          map[string]string `yaml:"options"`
}

// Profiles converts journal entries into normalizer profiles.
func (c Config) Profiles() []journal.Profile {
	profiles := make([]journal.Profile, 0, len(c.Journals))
	for _, j := range c.Journals {
		layouts := j.DateLayouts
		if len(layouts) == 0 {
			if known, ok := journal.LookupProfile(j.Name); ok {
				layouts = known.DateLayouts
			}
		}
		profiles = append(profiles, journal.Profile{
			Name:             j.Name,
			Feed:             j.Feed,
			DateLayouts:      layouts,
			ReliableAbstract: j.ReliableAbstract,
		})
	}
	return profiles
}

// Load reads .env and YAML configuration (if present) and applies environment
// overrides. An empty path falls back to DATAPAPER_CONFIG.
func Load(path string) Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Journals) == 0 {
		cfg.Journals = defaultConfig().Journals
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{databaseDriverEnv, &c.Database.Driver},
		{databaseDSNEnv, &c.Database.DSN},
		{llmAPIKeyEnv, &c.LLM.APIKey},
		{llmModelEnv, &c.LLM.Model},
		{llmBaseURLEnv, &c.LLM.BaseURL},
		{telegramTokenEnv, &c.Notifications.Telegram.BotToken},
		{telegramChatIDEnv, &c.Notifications.Telegram.ChatID},
		{s3BucketEnv, &c.Archive.Bucket},
		{logLevelEnv, &c.Logging.Level},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	mergeString(&base.Database.Driver, override.Database.Driver)
	mergeString(&base.Database.DSN, override.Database.DSN)
	mergeString(&base.Database.Path, override.Database.Path)

	mergeString(&base.LLM.BaseURL, override.LLM.BaseURL)
	mergeString(&base.LLM.Model, override.LLM.Model)
	mergeString(&base.LLM.APIKey, override.LLM.APIKey)
	mergeDuration(&base.LLM.Timeout, override.LLM.Timeout)
	mergeDuration(&base.LLM.RetryDelay, override.LLM.RetryDelay)
	mergeDuration(&base.LLM.MaxJitter, override.LLM.MaxJitter)
	if override.LLM.Attempts > 0 {
		base.LLM.Attempts = override.LLM.Attempts
	}

	mergeDuration(&base.Harvest.Timeout, override.Harvest.Timeout)
	if override.Harvest.FeedConcurrency > 0 {
		base.Harvest.FeedConcurrency = override.Harvest.FeedConcurrency
	}
	if override.Harvest.MinAbstractLength > 0 {
		base.Harvest.MinAbstractLength = override.Harvest.MinAbstractLength
	}

	mergeDuration(&base.Enrichment.CallPause, override.Enrichment.CallPause)
	mergeDuration(&base.Enrichment.BatchPause, override.Enrichment.BatchPause)
	if override.Enrichment.BatchSize > 0 {
		base.Enrichment.BatchSize = override.Enrichment.BatchSize
	}
	mergeString(&base.Enrichment.DefaultJournal, override.Enrichment.DefaultJournal)

	mergeString(&base.Export.SnapshotPath, override.Export.SnapshotPath)
	mergeString(&base.Export.BackupDir, override.Export.BackupDir)

	mergeString(&base.Archive.Bucket, override.Archive.Bucket)
	mergeString(&base.Archive.Region, override.Archive.Region)
	mergeString(&base.Archive.Prefix, override.Archive.Prefix)
	mergeString(&base.Archive.Endpoint, override.Archive.Endpoint)

	mergeDuration(&base.Scheduler.Interval, override.Scheduler.Interval)
	mergeString(&base.Scheduler.Timezone, override.Scheduler.Timezone)

	mergeString(&base.Notifications.Telegram.BotToken, override.Notifications.Telegram.BotToken)
	mergeString(&base.Notifications.Telegram.ChatID, override.Notifications.Telegram.ChatID)
	mergeString(&base.Notifications.Telegram.BaseURL, override.Notifications.Telegram.BaseURL)

	mergeString(&base.Logging.Level, override.Logging.Level)

	if len(override.Journals) > 0 {
		base.Journals = override.Journals
	}

	return base
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)

	journals := make([]JournalConfig, 0, 4)
	for _, p := range journal.DefaultProfiles() {
		journals = append(journals, JournalConfig{
			Name:             p.Name,
			Feed:             p.Feed,
			Scanner:          "rss",
			ReliableAbstract: p.ReliableAbstract,
		})
	}

	return Config{
		Database: DatabaseConfig{Driver: "file", Path: "data/catalog.json"},
		LLM: LLMConfig{
			BaseURL:    "https://api.deepseek.com",
			Model:      "deepseek-chat",
			Timeout:    60 * time.Second,
			Attempts:   3,
			RetryDelay: time.Second,
			MaxJitter:  time.Second,
		},
		Harvest: HarvestConfig{
			Timeout:           30 * time.Second,
			FeedConcurrency:   4,
			MinAbstractLength: 50,
		},
		Enrichment: EnrichmentConfig{
			CallPause:      time.Second,
			BatchPause:     2 * time.Second,
			BatchSize:      5,
			DefaultJournal: "Scientific Data",
		},
		Export: ExportConfig{
			SnapshotPath: "data/papers.json",
			BackupDir:    "data/backups",
		},
		Archive:   ArchiveConfig{Region: "us-east-1", Prefix: "snapshots/"},
		Scheduler: SchedulerConfig{Interval: 24 * time.Hour, Timezone: defaultTimezone, location: tz},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BaseURL: "https://api.telegram.org"},
		},
		Logging:  LoggingConfig{Level: "info"},
		Journals: journals,
	}
}
