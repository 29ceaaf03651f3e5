package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	SourceLang string        `mapstructure:"source_lang"`

	STT       STTConfig       `mapstructure:"stt"`
	Translate TranslateConfig `mapstructure:"translate"`
	TTS       TTSConfig       `mapstructure:"tts"`
	Capture   CaptureConfig   `mapstructure:"capture"`
}

// STTConfig points at the streaming transcription backend.
type STTConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	SampleRate  int           `mapstructure:"sample_rate"`
	Diarization bool          `mapstructure:"diarization"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type TranslateConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type TTSConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Voice    string        `mapstructure:"voice"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// CaptureConfig controls the optional local recording subprocess.
// Command is overridable so tests can substitute a harmless binary.
type CaptureConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Command    string `mapstructure:"command"`
	Channels   int    `mapstructure:"channels"`
	SampleRate int    `mapstructure:"sample_rate"`
	AudioType  string `mapstructure:"audio_type"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("source_lang", "en")

	v.SetDefault("stt.endpoint", "ws://localhost:9090/v1/stream")
	v.SetDefault("stt.sample_rate", 16000)
	v.SetDefault("stt.diarization", true)
	v.SetDefault("stt.dial_timeout", "10s")

	v.SetDefault("translate.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("translate.model", "gpt-4o-mini")
	v.SetDefault("translate.timeout", "15s")

	v.SetDefault("tts.endpoint", "https://api.openai.com/v1/audio/speech")
	v.SetDefault("tts.model", "tts-1")
	v.SetDefault("tts.voice", "alloy")
	v.SetDefault("tts.timeout", "30s")

	v.SetDefault("capture.enabled", false)
	v.SetDefault("capture.command", "sox")
	v.SetDefault("capture.channels", 1)
	v.SetDefault("capture.sample_rate", 16000)
	v.SetDefault("capture.audio_type", "wav")
}
