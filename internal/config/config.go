package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config stores runtime configuration for the interview client.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Audio   AudioConfig   `yaml:"audio"`
	VAD     VADConfig     `yaml:"vad"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`

	// Source is the YAML file that was applied, if any.
	Source string `yaml:"-"`
}

type ServerConfig struct {
	URL                    string        `yaml:"url"`
	HandshakeTimeout       time.Duration `yaml:"handshake_timeout"`
	WriteTimeout           time.Duration `yaml:"write_timeout"`
	ReconnectDelay         time.Duration `yaml:"reconnect_delay"`
	MaxReconnectAttempts   int           `yaml:"max_reconnect_attempts"`
	ResendSetupOnReconnect bool          `yaml:"resend_setup_on_reconnect"`
}

type AudioConfig struct {
	RecorderCommand   string        `yaml:"recorder_command"`
	InputFormat       string        `yaml:"input_format"`
	MicrophoneDevice  string        `yaml:"microphone_device"`
	ScreenInputFormat string        `yaml:"screen_input_format"`
	ScreenDevice      string        `yaml:"screen_device"`
	SampleRate        int           `yaml:"sample_rate"`
	Channels          int           `yaml:"channels"`
	ChunkInterval     time.Duration `yaml:"chunk_interval"`
	ReadSize          int           `yaml:"read_size"`
}

type VADConfig struct {
	Threshold       float64       `yaml:"threshold"`
	TrailingSilence time.Duration `yaml:"trailing_silence"`
	Tick            time.Duration `yaml:"tick"`
	FFTSize         int           `yaml:"fft_size"`
	MaxBuffer       time.Duration `yaml:"max_buffer"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	// Addr enables the metrics/health server when non-empty.
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: ServerConfig{
			URL:                    "ws://localhost:8080/interview",
			HandshakeTimeout:       10 * time.Second,
			WriteTimeout:           10 * time.Second,
			ReconnectDelay:         3 * time.Second,
			MaxReconnectAttempts:   5,
			ResendSetupOnReconnect: true,
		},
		Audio: AudioConfig{
			RecorderCommand:   "ffmpeg",
			InputFormat:       "pulse",
			MicrophoneDevice:  "default",
			ScreenInputFormat: "pulse",
			ScreenDevice:      "default.monitor",
			SampleRate:        16000,
			Channels:          1,
			ChunkInterval:     100 * time.Millisecond,
			ReadSize:          4096,
		},
		VAD: VADConfig{
			Threshold:       15,
			TrailingSilence: time.Second,
			Tick:            16 * time.Millisecond,
			FFTSize:         1024,
			MaxBuffer:       30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load resolves configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence (env wins).
func Load() (Config, error) {
	cfg := Default()

	path, explicit := configPath()
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return Config{}, err
			}
		} else {
			cfg.Source = path
		}
	}

	applyEnv(&cfg)
	normalize(&cfg)
	return cfg, nil
}

// YAML renders the effective configuration.
func (c Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(out), nil
}

func configPath() (string, bool) {
	if path := strings.TrimSpace(os.Getenv("INTERVIEWMIC_CONFIG")); path != "" {
		return path, true
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(home, ".config", "interviewmic", "config.yaml"), false
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.URL = envOrDefault("INTERVIEWMIC_SERVER_URL", cfg.Server.URL)
	cfg.Server.HandshakeTimeout = envOrDefaultMillis("INTERVIEWMIC_HANDSHAKE_TIMEOUT_MS", cfg.Server.HandshakeTimeout)
	cfg.Server.WriteTimeout = envOrDefaultMillis("INTERVIEWMIC_WRITE_TIMEOUT_MS", cfg.Server.WriteTimeout)
	cfg.Server.ReconnectDelay = envOrDefaultMillis("INTERVIEWMIC_RECONNECT_DELAY_MS", cfg.Server.ReconnectDelay)
	cfg.Server.MaxReconnectAttempts = envOrDefaultInt("INTERVIEWMIC_MAX_RECONNECT_ATTEMPTS", cfg.Server.MaxReconnectAttempts)
	cfg.Server.ResendSetupOnReconnect = envOrDefaultBool("INTERVIEWMIC_RESEND_SETUP", cfg.Server.ResendSetupOnReconnect)

	cfg.Audio.RecorderCommand = envOrDefault("INTERVIEWMIC_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.InputFormat = envOrDefault("INTERVIEWMIC_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.MicrophoneDevice = envOrDefault("INTERVIEWMIC_MICROPHONE_DEVICE", cfg.Audio.MicrophoneDevice)
	cfg.Audio.ScreenInputFormat = envOrDefault("INTERVIEWMIC_SCREEN_INPUT_FORMAT", cfg.Audio.ScreenInputFormat)
	cfg.Audio.ScreenDevice = envOrDefault("INTERVIEWMIC_SCREEN_DEVICE", cfg.Audio.ScreenDevice)
	cfg.Audio.SampleRate = envOrDefaultInt("INTERVIEWMIC_SAMPLE_RATE", cfg.Audio.SampleRate)
	cfg.Audio.Channels = envOrDefaultInt("INTERVIEWMIC_CHANNELS", cfg.Audio.Channels)
	cfg.Audio.ChunkInterval = envOrDefaultMillis("INTERVIEWMIC_CHUNK_INTERVAL_MS", cfg.Audio.ChunkInterval)
	cfg.Audio.ReadSize = envOrDefaultInt("INTERVIEWMIC_READ_SIZE", cfg.Audio.ReadSize)

	cfg.VAD.Threshold = envOrDefaultFloat("INTERVIEWMIC_VAD_THRESHOLD", cfg.VAD.Threshold)
	cfg.VAD.TrailingSilence = envOrDefaultMillis("INTERVIEWMIC_VAD_TRAILING_SILENCE_MS", cfg.VAD.TrailingSilence)
	cfg.VAD.Tick = envOrDefaultMillis("INTERVIEWMIC_VAD_TICK_MS", cfg.VAD.Tick)
	cfg.VAD.FFTSize = envOrDefaultInt("INTERVIEWMIC_VAD_FFT_SIZE", cfg.VAD.FFTSize)
	cfg.VAD.MaxBuffer = envOrDefaultMillis("INTERVIEWMIC_VAD_MAX_BUFFER_MS", cfg.VAD.MaxBuffer)

	cfg.Logging.Level = envOrDefault("INTERVIEWMIC_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = envOrDefault("INTERVIEWMIC_LOG_FORMAT", cfg.Logging.Format)
	cfg.Metrics.Addr = envOrDefault("INTERVIEWMIC_METRICS_ADDR", cfg.Metrics.Addr)
}

func normalize(cfg *Config) {
	defaults := Default()

	if cfg.Server.HandshakeTimeout <= 0 {
		cfg.Server.HandshakeTimeout = defaults.Server.HandshakeTimeout
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = defaults.Server.WriteTimeout
	}
	if cfg.Server.ReconnectDelay <= 0 {
		cfg.Server.ReconnectDelay = defaults.Server.ReconnectDelay
	}
	if cfg.Server.MaxReconnectAttempts < 0 {
		cfg.Server.MaxReconnectAttempts = defaults.Server.MaxReconnectAttempts
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = defaults.Audio.SampleRate
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = defaults.Audio.Channels
	}
	if cfg.Audio.ChunkInterval <= 0 {
		cfg.Audio.ChunkInterval = defaults.Audio.ChunkInterval
	}
	if cfg.Audio.ReadSize < 256 {
		cfg.Audio.ReadSize = defaults.Audio.ReadSize
	}
	if cfg.VAD.Threshold <= 0 || cfg.VAD.Threshold > 255 {
		cfg.VAD.Threshold = defaults.VAD.Threshold
	}
	if cfg.VAD.TrailingSilence <= 0 {
		cfg.VAD.TrailingSilence = defaults.VAD.TrailingSilence
	}
	if cfg.VAD.Tick <= 0 {
		cfg.VAD.Tick = defaults.VAD.Tick
	}
	if cfg.VAD.FFTSize < 32 || cfg.VAD.FFTSize&(cfg.VAD.FFTSize-1) != 0 {
		cfg.VAD.FFTSize = defaults.VAD.FFTSize
	}
	if cfg.VAD.MaxBuffer < 0 {
		cfg.VAD.MaxBuffer = 0
	}
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultMillis(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
