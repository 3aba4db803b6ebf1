/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// RunStateBackend selects how the shared run-state flag is stored.
type RunStateBackend string

const (
	RunStateFile  RunStateBackend = "file"
	RunStateRedis RunStateBackend = "redis"
)

// BackupBackend selects the archive target for the durable store.
type BackupBackend string

const (
	BackupFTP BackupBackend = "ftp"
	BackupS3  BackupBackend = "s3"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string

	// Directory layout. All data lives under AssetsDir/DataDir.
	AssetsDir       string
	DataDir         string
	RecordingsDir   string // durable store, authoritative copy of every segment
	AudioBufferBase string // per-device buffers are {base}_1..{base}_N
	TranscriptsDir  string
	ScheduleFile    string // weekly timetable (JSON or YAML)

	// Recording behaviour.
	DeviceCount     int
	SegmentDuration time.Duration
	Retries         int
	RetryWait       time.Duration

	// Listener behaviour.
	PollInterval  time.Duration
	ClassifyBatch int

	// Lifecycle.
	Timezone     string
	Repetitions  int
	ShutdownTime string // HH:MM
	RestartTime  string // HH:MM
	DrainWait    time.Duration

	// Feature toggles.
	DisableRecording      bool
	DisableTranscription  bool
	DisableClassification bool

	// Shared run-state.
	RunStateBackend RunStateBackend
	RunStateFile    string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// Audio backup.
	BackupEnabled   bool
	BackupBackend   BackupBackend
	FTPHost         string
	FTPPort         int
	FTPUsername     string
	FTPPassword     string
	FTPRemoteDir    string
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3Prefix        string
	S3AccessKeyID   string
	S3SecretKey     string
	S3UsePathStyle  bool

	// Collaborators.
	ScribeCommand string // transcription tool invoked per batch
	ClassifierURL string
	ClassifierKey string

	// Status server.
	HTTPBind string
	HTTPPort int
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("WAVEPULSE_ENV", "development"),

		AssetsDir:       getEnv("WAVEPULSE_ASSETS_DIR", "assets"),
		DataDir:         getEnv("WAVEPULSE_DATA_DIR", "data"),
		RecordingsDir:   getEnv("WAVEPULSE_RECORDINGS_DIR", "recordings"),
		AudioBufferBase: getEnv("WAVEPULSE_AUDIO_BUFFER_DIR", "audio_buffer"),
		TranscriptsDir:  getEnv("WAVEPULSE_TRANSCRIPTS_DIR", "transcripts"),
		ScheduleFile:    getEnv("WAVEPULSE_RADIO_SCHEDULE", "weekly_schedule.json"),

		DeviceCount:     getEnvInt("WAVEPULSE_DEVICE_COUNT", 1),
		SegmentDuration: getEnvDuration("WAVEPULSE_SEGMENT_DURATION", 1800*time.Second),
		Retries:         getEnvInt("WAVEPULSE_RETRIES", 3),
		RetryWait:       getEnvDuration("WAVEPULSE_RETRY_WAIT", 60*time.Second),

		PollInterval:  getEnvDuration("WAVEPULSE_POLL_INTERVAL", 60*time.Second),
		ClassifyBatch: getEnvInt("WAVEPULSE_CLASSIFY_BATCH", 1),

		Timezone:     getEnv("WAVEPULSE_TIMEZONE", "US/Eastern"),
		Repetitions:  getEnvInt("WAVEPULSE_REPETITIONS", 1),
		ShutdownTime: getEnv("WAVEPULSE_SHUTDOWN_TIME", "03:00"),
		RestartTime:  getEnv("WAVEPULSE_RESTART_TIME", "03:10"),
		DrainWait:    getEnvDuration("WAVEPULSE_DRAIN_WAIT", 90*time.Second),

		DisableRecording:      getEnvBool("WAVEPULSE_STOP_RECORDING", false),
		DisableTranscription:  getEnvBool("WAVEPULSE_STOP_TRANSCRIPTION", false),
		DisableClassification: getEnvBool("WAVEPULSE_STOP_CLASSIFICATION", false),

		RunStateBackend: RunStateBackend(getEnv("WAVEPULSE_RUNSTATE_BACKEND", string(RunStateFile))),
		RunStateFile:    getEnv("WAVEPULSE_RUNSTATE_FILE", ""),
		RedisAddr:       getEnv("WAVEPULSE_REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("WAVEPULSE_REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("WAVEPULSE_REDIS_DB", 0),

		BackupEnabled:  getEnvBool("WAVEPULSE_BACKUP_AUDIO", false),
		BackupBackend:  BackupBackend(getEnv("WAVEPULSE_BACKUP_BACKEND", string(BackupFTP))),
		FTPHost:        getEnv("WAVEPULSE_FTP_SERVER", ""),
		FTPPort:        getEnvInt("WAVEPULSE_FTP_PORT", 21),
		FTPUsername:    getEnv("WAVEPULSE_FTP_USERNAME", ""),
		FTPPassword:    getEnv("WAVEPULSE_FTP_PASSWORD", ""),
		FTPRemoteDir:   getEnv("WAVEPULSE_FTP_REMOTE_DIR", "daily_recordings"),
		S3Bucket:       getEnv("WAVEPULSE_S3_BUCKET", ""),
		S3Region:       getEnvAny([]string{"WAVEPULSE_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Endpoint:     getEnv("WAVEPULSE_S3_ENDPOINT", ""),
		S3Prefix:       getEnv("WAVEPULSE_S3_PREFIX", "daily_recordings"),
		S3AccessKeyID:  getEnvAny([]string{"WAVEPULSE_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretKey:    getEnvAny([]string{"WAVEPULSE_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3UsePathStyle: getEnvBool("WAVEPULSE_S3_USE_PATH_STYLE", false),

		ScribeCommand: getEnv("WAVEPULSE_SCRIBE_COMMAND", "whisperx"),
		ClassifierURL: getEnv("WAVEPULSE_CLASSIFIER_URL", ""),
		ClassifierKey: getEnv("WAVEPULSE_CLASSIFIER_API_KEY", ""),

		HTTPBind: getEnv("WAVEPULSE_HTTP_BIND", "127.0.0.1"),
		HTTPPort: getEnvInt("WAVEPULSE_HTTP_PORT", 9090),
	}

	if cfg.RunStateFile == "" {
		cfg.RunStateFile = filepath.Join(cfg.DataPath(), "runstate")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DeviceCount < 1 {
		return fmt.Errorf("WAVEPULSE_DEVICE_COUNT must be at least 1, got %d", c.DeviceCount)
	}
	if c.SegmentDuration <= 0 {
		return fmt.Errorf("WAVEPULSE_SEGMENT_DURATION must be positive")
	}
	if c.Repetitions < 1 {
		return fmt.Errorf("WAVEPULSE_REPETITIONS must be at least 1, got %d", c.Repetitions)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid WAVEPULSE_TIMEZONE %q: %w", c.Timezone, err)
	}
	for _, v := range []struct{ key, val string }{
		{"WAVEPULSE_SHUTDOWN_TIME", c.ShutdownTime},
		{"WAVEPULSE_RESTART_TIME", c.RestartTime},
	} {
		if _, err := time.Parse("15:04", v.val); err != nil {
			return fmt.Errorf("%s must be HH:MM, got %q", v.key, v.val)
		}
	}
	switch c.RunStateBackend {
	case RunStateFile, RunStateRedis:
	default:
		return fmt.Errorf("unsupported run-state backend %q", c.RunStateBackend)
	}
	if c.BackupEnabled {
		switch c.BackupBackend {
		case BackupFTP:
			if c.FTPHost == "" {
				return fmt.Errorf("WAVEPULSE_FTP_SERVER must be provided when FTP backup is enabled")
			}
		case BackupS3:
			if c.S3Bucket == "" {
				return fmt.Errorf("WAVEPULSE_S3_BUCKET must be provided when S3 backup is enabled")
			}
		default:
			return fmt.Errorf("unsupported backup backend %q", c.BackupBackend)
		}
	}
	return nil
}

// Location returns the configured scheduling timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DataPath is the base data directory.
func (c *Config) DataPath() string {
	return filepath.Join(c.AssetsDir, c.DataDir)
}

// RecordingsPath is the durable store for captured segments.
func (c *Config) RecordingsPath() string {
	return filepath.Join(c.DataPath(), c.RecordingsDir)
}

// BufferBasePath is the base name for the per-device buffer directories.
// Device i's buffer is BufferBasePath()+"_"+i (1-indexed).
func (c *Config) BufferBasePath() string {
	return filepath.Join(c.DataPath(), c.AudioBufferBase)
}

// TranscriptsPath holds classified and unclassified transcripts.
func (c *Config) TranscriptsPath() string {
	return filepath.Join(c.DataPath(), c.TranscriptsDir)
}

// UnclassifiedBufferPath is where the transcriber drops transcripts pending classification.
func (c *Config) UnclassifiedBufferPath() string {
	return filepath.Join(c.TranscriptsPath(), "unclassified_buffer")
}

// ClassifiedPath returns the classification output directories.
func (c *Config) ClassifiedPath(kind string) string {
	return filepath.Join(c.TranscriptsPath(), "classified", kind)
}

// SchedulePath is the weekly timetable file.
func (c *Config) SchedulePath() string {
	return filepath.Join(c.AssetsDir, c.ScheduleFile)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvAny(keys []string, def string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvDuration accepts either a Go duration string or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	if parsed, err := time.ParseDuration(val); err == nil {
		return parsed
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
