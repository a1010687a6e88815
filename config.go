package auditor

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the settings shared by every process that opens the audit
// queue: the store endpoint, the optional credential, and the identity that
// namespaces this worker's pending queue.
type Config struct {
	// RedisAddr is the host:port of the coordination store.
	RedisAddr string `toml:"redis_addr"`

	// RedisPassword authenticates against the store. When empty it is
	// omitted from the connection parameters entirely.
	RedisPassword string `toml:"redis_password"`

	// RedisDB selects the logical Redis database.
	RedisDB int `toml:"redis_db"`

	// WorkerID namespaces this process's pending queue. When empty a
	// unique identifier is generated at queue construction so that
	// unidentified workers never share a pending queue.
	WorkerID string `toml:"worker_id"`

	// PromoteSchedule drives the periodic promoter. Accepts a 5-field
	// cron expression or a descriptor such as "@every 10s".
	PromoteSchedule string `toml:"promote_schedule"`

	// Concurrency is the number of claim/verify/resolve loops run by the
	// worker pool.
	Concurrency int `toml:"concurrency"`

	// PollIntervalSeconds is how long a worker waits after finding the
	// ready queue empty before claiming again.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`

	// ClaimRate caps sustained claims per second per worker process.
	// Zero disables rate limiting.
	ClaimRate float64 `toml:"claim_rate"`
}

// DefaultConfig returns a Config with sensible defaults for a local store.
func DefaultConfig() Config {
	return Config{
		RedisAddr:           "localhost:6379",
		PromoteSchedule:     "@every 30s",
		Concurrency:         4,
		PollIntervalSeconds: 1,
	}
}

// LoadConfig reads a TOML config file and applies environment overrides on
// top of it. A missing file is not an error; the defaults are used.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		file, err := os.Open(path)
		if err == nil {
			defer file.Close() //nolint:errcheck // read-only file
			decoder := toml.NewDecoder(file)
			if decErr := decoder.Decode(&cfg); decErr != nil {
				return cfg, fmt.Errorf("auditor: parse config %s: %w", path, decErr)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("auditor: open config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides config fields from the environment. Only the
// coordination surface is exposed this way; tuning knobs stay in the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("AUDITOR_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("AUDITOR_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("AUDITOR_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.RedisDB = db
		}
	}
	if v := os.Getenv("AUDITOR_WORKER_ID"); v != "" {
		c.WorkerID = v
	}
}
