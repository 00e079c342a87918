// Package config loads journeys settings from an optional TOML file and
// JOURNEYS_* environment variables. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// ConfigEnv names the environment variable holding the config file path.
const ConfigEnv = "JOURNEYS_CONFIG"

type Config struct {
	DatabaseURL string        // JOURNEYS_DATABASE_URL (required)
	NATSURL     string        // JOURNEYS_NATS_URL (optional, empty = no events)
	RedisURL    string        // JOURNEYS_REDIS_URL (optional, empty = no stats cache)
	StatsTTL    time.Duration // JOURNEYS_STATS_TTL (default 30s)

	// Export settings
	ExportInterval   time.Duration // JOURNEYS_EXPORT_INTERVAL (default 0 = disabled)
	ExportProjectID  int64         // JOURNEYS_EXPORT_PROJECT_ID (default 0 = every project)
	ExportS3Bucket   string        // JOURNEYS_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Endpoint string        // JOURNEYS_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string        // JOURNEYS_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Key      string        // JOURNEYS_EXPORT_S3_KEY (default "journeys/backup.jsonl")
}

// File is the on-disk layout of a config file. Durations are Go duration
// strings such as "30s".
type File struct {
	DatabaseURL string     `toml:"database_url"`
	NATSURL     string     `toml:"nats_url"`
	RedisURL    string     `toml:"redis_url"`
	StatsTTL    string     `toml:"stats_ttl"`
	Export      ExportFile `toml:"export"`
}

type ExportFile struct {
	Interval   string `toml:"interval"`
	ProjectID  int64  `toml:"project_id"`
	S3Bucket   string `toml:"s3_bucket"`
	S3Endpoint string `toml:"s3_endpoint"`
	S3Region   string `toml:"s3_region"`
	S3Key      string `toml:"s3_key"`
}

func defaults() File {
	return File{
		StatsTTL: "30s",
		Export: ExportFile{
			Interval: "0",
			S3Region: "us-east-1",
			S3Key:    "journeys/backup.jsonl",
		},
	}
}

// Load reads path (falling back to $JOURNEYS_CONFIG; empty = no file), then
// applies environment overrides. A missing file named by path is an error.
func Load(path string) (*Config, error) {
	f := defaults()

	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		if err := LoadFile(path, &f); err != nil {
			return nil, err
		}
	}

	f.DatabaseURL = envOrDefault("JOURNEYS_DATABASE_URL", f.DatabaseURL)
	f.NATSURL = envOrDefault("JOURNEYS_NATS_URL", f.NATSURL)
	f.RedisURL = envOrDefault("JOURNEYS_REDIS_URL", f.RedisURL)
	f.StatsTTL = envOrDefault("JOURNEYS_STATS_TTL", f.StatsTTL)
	f.Export.Interval = envOrDefault("JOURNEYS_EXPORT_INTERVAL", f.Export.Interval)
	f.Export.S3Bucket = envOrDefault("JOURNEYS_EXPORT_S3_BUCKET", f.Export.S3Bucket)
	f.Export.S3Endpoint = envOrDefault("JOURNEYS_EXPORT_S3_ENDPOINT", f.Export.S3Endpoint)
	f.Export.S3Region = envOrDefault("JOURNEYS_EXPORT_S3_REGION", f.Export.S3Region)
	f.Export.S3Key = envOrDefault("JOURNEYS_EXPORT_S3_KEY", f.Export.S3Key)

	c := &Config{
		DatabaseURL:      f.DatabaseURL,
		NATSURL:          f.NATSURL,
		RedisURL:         f.RedisURL,
		ExportProjectID:  f.Export.ProjectID,
		ExportS3Bucket:   f.Export.S3Bucket,
		ExportS3Endpoint: f.Export.S3Endpoint,
		ExportS3Region:   f.Export.S3Region,
		ExportS3Key:      f.Export.S3Key,
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("JOURNEYS_DATABASE_URL is required")
	}

	if v := os.Getenv("JOURNEYS_EXPORT_PROJECT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("JOURNEYS_EXPORT_PROJECT_ID: %w", err)
		}
		c.ExportProjectID = id
	}

	var err error
	if c.StatsTTL, err = parseDuration("JOURNEYS_STATS_TTL", f.StatsTTL); err != nil {
		return nil, err
	}
	if c.ExportInterval, err = parseDuration("JOURNEYS_EXPORT_INTERVAL", f.Export.Interval); err != nil {
		return nil, err
	}
	if c.ExportInterval < 0 {
		return nil, fmt.Errorf("JOURNEYS_EXPORT_INTERVAL: must not be negative")
	}

	return c, nil
}

// LoadFile decodes the TOML file at path over f. Keys absent from the file
// keep their current value.
func LoadFile(path string, f *File) error {
	md, err := toml.DecodeFile(path, f)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s does not exist", path)
		}
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config file %s: unknown key %q", path, undecoded[0].String())
	}
	return nil
}

func parseDuration(name, v string) (time.Duration, error) {
	if v == "" || v == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
