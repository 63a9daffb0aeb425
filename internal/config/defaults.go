package config

const (
	defaultDataDir             = "~/.local/share/reelsmith"
	defaultStaticDir           = "~/.local/share/reelsmith/static"
	defaultLogDir              = "~/.local/share/reelsmith/logs"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "deepseek/deepseek-chat"
	defaultLLMReferer          = "https://github.com/reelsmith/reelsmith"
	defaultLLMTitle            = "Reelsmith Script Writer"
	defaultLLMTimeoutSeconds   = 120
	defaultTTSProvider         = "edge"
	defaultTTSTimeoutSeconds   = 120
	defaultWhisperModel        = "small"
	defaultWhisperTimeout      = 600
	defaultCaptionFontSize     = 120
	defaultRenderWidth         = 1080
	defaultRenderHeight        = 1920
	defaultRenderFPS           = 30
	defaultRenderPadding       = 0.3
	defaultRenderVideoCodec    = "libx264"
	defaultRenderAudioCodec    = "aac"
	defaultRenderColor         = "0x0F0F19"
	defaultRenderThreads       = 4
	defaultRenderSlots         = 1
	defaultRenderTimeout       = 1800
	defaultMusicVolume         = 0.3
	defaultUploadCategoryID    = "22"
	defaultUploadPrivacy       = "public"
	defaultUploadTimeout       = 600
	defaultPollInterval        = 5
	defaultHeartbeatInterval   = 15
	defaultHeartbeatTimeout    = 120
	defaultMaxRetries          = 3
	defaultRetryBackoffSeconds = 10
	defaultStageTimeoutSeconds = 1800
	defaultMinFreeGiB          = 5
	defaultNotifyTimeout       = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			StaticDir: defaultStaticDir,
			LogDir:    defaultLogDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		TTS: TTS{
			Provider:       defaultTTSProvider,
			Voices:         []string{"en-US-AriaNeural", "en-US-GuyNeural"},
			TimeoutSeconds: defaultTTSTimeoutSeconds,
		},
		Captions: Captions{
			FontSize:       defaultCaptionFontSize,
			WhisperModel:   defaultWhisperModel,
			WhisperTimeout: defaultWhisperTimeout,
		},
		Render: Render{
			Width:           defaultRenderWidth,
			Height:          defaultRenderHeight,
			FPS:             defaultRenderFPS,
			PaddingSeconds:  defaultRenderPadding,
			VideoCodec:      defaultRenderVideoCodec,
			AudioCodec:      defaultRenderAudioCodec,
			BackgroundColor: defaultRenderColor,
			Threads:         defaultRenderThreads,
			Slots:           defaultRenderSlots,
			TimeoutSeconds:  defaultRenderTimeout,
		},
		Music: Music{
			Volume: defaultMusicVolume,
		},
		Upload: Upload{
			CategoryID:     defaultUploadCategoryID,
			PrivacyStatus:  defaultUploadPrivacy,
			TimeoutSeconds: defaultUploadTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			RunStarted:     true,
			RunCompleted:   true,
			RunFailed:      true,
			Uploaded:       true,
		},
		Workflow: Workflow{
			PollInterval:        defaultPollInterval,
			HeartbeatInterval:   defaultHeartbeatInterval,
			HeartbeatTimeout:    defaultHeartbeatTimeout,
			MaxRetries:          defaultMaxRetries,
			RetryBackoffSeconds: defaultRetryBackoffSeconds,
			StageTimeoutSeconds: defaultStageTimeoutSeconds,
		},
		Preflight: Preflight{
			MinFreeGiB: defaultMinFreeGiB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
