package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeTTS()
	if err := c.normalizeCaptions(); err != nil {
		return err
	}
	c.normalizeRender()
	c.normalizeUpload()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.StaticDir, err = expandPath(c.Paths.StaticDir); err != nil {
		return fmt.Errorf("paths.static_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeTTS() {
	c.TTS.Provider = strings.ToLower(strings.TrimSpace(c.TTS.Provider))
	if c.TTS.Provider == "" {
		c.TTS.Provider = defaultTTSProvider
	}
	voices := make([]string, 0, len(c.TTS.Voices))
	seen := make(map[string]struct{}, len(c.TTS.Voices))
	for _, voice := range c.TTS.Voices {
		trimmed := strings.TrimSpace(voice)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		voices = append(voices, trimmed)
	}
	c.TTS.Voices = voices
	c.TTS.Rate = strings.TrimSpace(c.TTS.Rate)
	c.TTS.Pitch = strings.TrimSpace(c.TTS.Pitch)
	if c.TTS.TimeoutSeconds <= 0 {
		c.TTS.TimeoutSeconds = defaultTTSTimeoutSeconds
	}
}

func (c *Config) normalizeCaptions() error {
	var err error
	if c.Captions.FontFile != "" {
		if c.Captions.FontFile, err = expandPath(c.Captions.FontFile); err != nil {
			return fmt.Errorf("captions.font_file: %w", err)
		}
	}
	if c.Captions.FontSize <= 0 {
		c.Captions.FontSize = defaultCaptionFontSize
	}
	c.Captions.WhisperModel = strings.TrimSpace(c.Captions.WhisperModel)
	if c.Captions.WhisperModel == "" {
		c.Captions.WhisperModel = defaultWhisperModel
	}
	if c.Captions.WhisperTimeout <= 0 {
		c.Captions.WhisperTimeout = defaultWhisperTimeout
	}
	return nil
}

func (c *Config) normalizeRender() {
	if c.Render.Width <= 0 {
		c.Render.Width = defaultRenderWidth
	}
	if c.Render.Height <= 0 {
		c.Render.Height = defaultRenderHeight
	}
	if c.Render.FPS <= 0 {
		c.Render.FPS = defaultRenderFPS
	}
	if c.Render.PaddingSeconds < 0 {
		c.Render.PaddingSeconds = defaultRenderPadding
	}
	c.Render.VideoCodec = strings.TrimSpace(c.Render.VideoCodec)
	if c.Render.VideoCodec == "" {
		c.Render.VideoCodec = defaultRenderVideoCodec
	}
	c.Render.AudioCodec = strings.TrimSpace(c.Render.AudioCodec)
	if c.Render.AudioCodec == "" {
		c.Render.AudioCodec = defaultRenderAudioCodec
	}
	c.Render.BackgroundColor = strings.TrimSpace(c.Render.BackgroundColor)
	if c.Render.BackgroundColor == "" {
		c.Render.BackgroundColor = defaultRenderColor
	}
	if c.Render.Threads <= 0 {
		c.Render.Threads = defaultRenderThreads
	}
	if c.Render.Slots <= 0 {
		c.Render.Slots = defaultRenderSlots
	}
	if c.Render.TimeoutSeconds <= 0 {
		c.Render.TimeoutSeconds = defaultRenderTimeout
	}
}

func (c *Config) normalizeUpload() {
	c.Upload.ClientID = strings.TrimSpace(c.Upload.ClientID)
	if c.Upload.ClientID == "" {
		if value, ok := os.LookupEnv("YOUTUBE_CLIENT_ID"); ok {
			c.Upload.ClientID = strings.TrimSpace(value)
		}
	}
	c.Upload.ClientSecret = strings.TrimSpace(c.Upload.ClientSecret)
	if c.Upload.ClientSecret == "" {
		if value, ok := os.LookupEnv("YOUTUBE_CLIENT_SECRET"); ok {
			c.Upload.ClientSecret = strings.TrimSpace(value)
		}
	}
	c.Upload.RefreshToken = strings.TrimSpace(c.Upload.RefreshToken)
	if c.Upload.RefreshToken == "" {
		if value, ok := os.LookupEnv("YOUTUBE_REFRESH_TOKEN"); ok {
			c.Upload.RefreshToken = strings.TrimSpace(value)
		}
	}
	c.Upload.CategoryID = strings.TrimSpace(c.Upload.CategoryID)
	if c.Upload.CategoryID == "" {
		c.Upload.CategoryID = defaultUploadCategoryID
	}
	c.Upload.PrivacyStatus = strings.ToLower(strings.TrimSpace(c.Upload.PrivacyStatus))
	if c.Upload.PrivacyStatus == "" {
		c.Upload.PrivacyStatus = defaultUploadPrivacy
	}
	if c.Upload.TimeoutSeconds <= 0 {
		c.Upload.TimeoutSeconds = defaultUploadTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.PollInterval <= 0 {
		c.Workflow.PollInterval = defaultPollInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Workflow.MaxRetries < 0 {
		c.Workflow.MaxRetries = defaultMaxRetries
	}
	if c.Workflow.RetryBackoffSeconds <= 0 {
		c.Workflow.RetryBackoffSeconds = defaultRetryBackoffSeconds
	}
	if c.Workflow.StageTimeoutSeconds <= 0 {
		c.Workflow.StageTimeoutSeconds = defaultStageTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
