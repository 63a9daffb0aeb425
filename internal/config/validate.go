package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateTTS(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateMusic(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/reelsmith/config.toml"
		}
		return fmt.Errorf("llm.api_key is required. Set OPENROUTER_API_KEY env var or edit %s (create with 'reelsmith config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateTTS() error {
	switch c.TTS.Provider {
	case "edge", "piper":
	default:
		return fmt.Errorf("tts.provider must be one of edge, piper (got %q)", c.TTS.Provider)
	}
	if len(c.TTS.Voices) == 0 {
		return errors.New("tts.voices must include at least one voice")
	}
	if c.TTS.Provider == "piper" && strings.TrimSpace(c.TTS.PiperModelPath) == "" {
		return errors.New("tts.piper_model_path must be set when tts.provider is piper")
	}
	return nil
}

func (c *Config) validateRender() error {
	if err := ensurePositiveMap(map[string]int{
		"render.width":           c.Render.Width,
		"render.height":          c.Render.Height,
		"render.fps":             c.Render.FPS,
		"render.threads":         c.Render.Threads,
		"render.slots":           c.Render.Slots,
		"render.timeout_seconds": c.Render.TimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Render.PaddingSeconds < 0 {
		return errors.New("render.padding_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateMusic() error {
	if c.Music.Volume < 0 || c.Music.Volume > 1 {
		return errors.New("music.volume must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if !c.Upload.Enabled {
		return nil
	}
	if c.Upload.ClientID == "" || c.Upload.ClientSecret == "" || c.Upload.RefreshToken == "" {
		return errors.New("upload.client_id, upload.client_secret, and upload.refresh_token must be set when upload.enabled is true (or set YOUTUBE_* env vars)")
	}
	switch c.Upload.PrivacyStatus {
	case "public", "private", "unlisted":
	default:
		return fmt.Errorf("upload.privacy_status must be one of public, private, unlisted (got %q)", c.Upload.PrivacyStatus)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.poll_interval":         c.Workflow.PollInterval,
		"workflow.retry_backoff_seconds": c.Workflow.RetryBackoffSeconds,
		"workflow.stage_timeout_seconds": c.Workflow.StageTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	if c.Workflow.MaxRetries < 0 {
		return errors.New("workflow.max_retries must be >= 0")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
