package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	StaticDir string `toml:"static_dir"`
	LogDir    string `toml:"log_dir"`
}

// LLM contains connection settings for the script-generation model.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TTS contains speech-synthesis provider settings.
type TTS struct {
	Provider       string   `toml:"provider"`
	Voices         []string `toml:"voices"`
	Rate           string   `toml:"rate"`
	Pitch          string   `toml:"pitch"`
	PiperModelPath string   `toml:"piper_model_path"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Captions contains word-caption rendering and alignment settings.
type Captions struct {
	FontFile         string `toml:"font_file"`
	FontSize         int    `toml:"font_size"`
	AlignmentEnabled bool   `toml:"alignment_enabled"`
	WhisperModel     string `toml:"whisper_model"`
	WhisperTimeout   int    `toml:"whisper_timeout_seconds"`
}

// Render contains video composition and encoding settings.
type Render struct {
	Width           int     `toml:"width"`
	Height          int     `toml:"height"`
	FPS             int     `toml:"fps"`
	PaddingSeconds  float64 `toml:"padding_seconds"`
	VideoCodec      string  `toml:"video_codec"`
	AudioCodec      string  `toml:"audio_codec"`
	BackgroundColor string  `toml:"background_color"`
	Threads         int     `toml:"threads"`
	Slots           int     `toml:"slots"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
}

// Music contains background music mixing settings.
type Music struct {
	Volume float64 `toml:"volume"`
}

// Upload contains YouTube upload settings. Credentials fall back to
// environment variables so secrets can stay out of the config file.
type Upload struct {
	Enabled        bool     `toml:"enabled"`
	ClientID       string   `toml:"client_id"`
	ClientSecret   string   `toml:"client_secret"`
	RefreshToken   string   `toml:"refresh_token"`
	CategoryID     string   `toml:"category_id"`
	PrivacyStatus  string   `toml:"privacy_status"`
	Tags           []string `toml:"tags"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunStarted     bool   `toml:"run_started"`
	RunCompleted   bool   `toml:"run_completed"`
	RunFailed      bool   `toml:"run_failed"`
	Uploaded       bool   `toml:"uploaded"`
}

// Workflow contains daemon timing, retry, and admission settings.
type Workflow struct {
	PollInterval        int `toml:"poll_interval"`
	HeartbeatInterval   int `toml:"heartbeat_interval"`
	HeartbeatTimeout    int `toml:"heartbeat_timeout"`
	MaxRetries          int `toml:"max_retries"`
	RetryBackoffSeconds int `toml:"retry_backoff_seconds"`
	StageTimeoutSeconds int `toml:"stage_timeout_seconds"`
}

// Preflight contains startup dependency-check settings.
type Preflight struct {
	MinFreeGiB int `toml:"min_free_gib"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for reelsmith.
//
// Configuration sections by subsystem:
//   - Paths: data, static asset, and log directories
//   - LLM: chat-completion connection for script generation
//   - TTS: speech synthesis provider and voice pool
//   - Captions: word-caption fonts and forced alignment
//   - Render: composition dimensions, codecs, and admission slots
//   - Music: background music mixing
//   - Upload: YouTube Data API upload settings
//   - Notifications: ntfy push notification settings
//   - Workflow: polling, heartbeats, retries, stage timeouts
//   - Preflight: startup dependency checks
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	LLM           LLM           `toml:"llm"`
	TTS           TTS           `toml:"tts"`
	Captions      Captions      `toml:"captions"`
	Render        Render        `toml:"render"`
	Music         Music         `toml:"music"`
	Upload        Upload        `toml:"upload"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Preflight     Preflight     `toml:"preflight"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelsmith/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelsmith.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.StaticDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for composition.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for duration probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
