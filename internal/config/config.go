package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 是 speechmix 的顶层配置结构。
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Voices     VoicesConfig     `yaml:"voices"`
	TTS        TTSConfig        `yaml:"tts"`
	Markers    MarkersConfig    `yaml:"markers"`
	Compositor CompositorConfig `yaml:"compositor"`
}

// ServerConfig HTTP 服务配置。
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// RequestTimeout 单次合成请求的超时时间（秒）。
	RequestTimeout int `yaml:"request_timeout"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// DatabaseConfig 合成记录数据库配置。
// Path 为 "-" 时不记录。
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// VoicesConfig 音色配置：voice key 到后端音色的映射。
type VoicesConfig struct {
	Default  string                  `yaml:"default"`
	Profiles map[string]VoiceProfile `yaml:"profiles"`
}

// VoiceProfile 单个音色的后端身份。
type VoiceProfile struct {
	Engine    string `yaml:"engine"`     // edge, tencent, piper, say
	Voice     string `yaml:"voice"`      // edge / say 音色名，如 en-US-GuyNeural
	VoiceType int64  `yaml:"voice_type"` // 腾讯云音色 ID
	Emotion   string `yaml:"emotion"`    // 腾讯云情感类别，为空则不设置
	ModelPath string `yaml:"model_path"` // piper 模型路径
}

// TTSConfig 语音合成参数。
type TTSConfig struct {
	// RateMultiplier 全局语速系数，在语气基准之后应用。
	RateMultiplier float64 `yaml:"rate_multiplier"`
	// Jitter 每次调用的随机语速扰动幅度，0.05 表示 ±5%，未配置时为 0.05，显式写 0 关闭扰动。
	Jitter  *float64              `yaml:"jitter"`
	Tones   map[string]ToneConfig `yaml:"tones"`
	Tencent TencentConfig         `yaml:"tencent"`
	Piper   PiperConfig           `yaml:"piper"`
}

// JitterAmount 返回语速扰动幅度，未设置时为 0。
func (t TTSConfig) JitterAmount() float64 {
	if t.Jitter == nil {
		return 0
	}
	return *t.Jitter
}

// ToneConfig 语气对应的基准语速和表现力。
type ToneConfig struct {
	Rate           float64 `yaml:"rate"`
	Expressiveness float64 `yaml:"expressiveness"`
}

// TencentConfig 腾讯云 TTS 凭证。
type TencentConfig struct {
	SecretID  string `yaml:"secret_id"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// PiperConfig Piper TTS 配置。
type PiperConfig struct {
	Binary     string `yaml:"binary"`
	SampleRate int    `yaml:"sample_rate"`
}

// MarkersConfig 行内标记配置。
type MarkersConfig struct {
	// AssetDir 预录音效所在目录。
	AssetDir string `yaml:"asset_dir"`
	// Sounds 标记到音效文件名的映射，如 "*coughs*": cough.mp3。
	Sounds     map[string]string `yaml:"sounds"`
	PauseMinMs int               `yaml:"pause_min_ms"`
	PauseMaxMs int               `yaml:"pause_max_ms"`
}

// CompositorConfig 音频拼接配置。
type CompositorConfig struct {
	// FFmpeg 转码命令前缀，支持带参数，如 "ffmpeg -hide_banner -loglevel error"。
	FFmpeg         string  `yaml:"ffmpeg"`
	PitchSemitones float64 `yaml:"pitch_semitones"`
	SampleRate     int     `yaml:"sample_rate"`
	Channels       int     `yaml:"channels"`
	Bitrate        string  `yaml:"bitrate"`
	TempDir        string  `yaml:"temp_dir"`
	Concurrency    int     `yaml:"concurrency"`
	FallbackText   string  `yaml:"fallback_text"`
	// ChunkChars 单个文字片段超过该字符数时按句拆分后分别合成，0 使用默认值，负数不拆分。
	ChunkChars int `yaml:"chunk_chars"`
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开，工作目录下的 .env 会先被加载。
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("加载 .env 失败: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}
	return cfg, nil
}

// Parse 解析 YAML 内容，展开环境变量，填充默认值并校验。
func Parse(data []byte) (*Config, error) {
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	setDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 拒绝无法工作的配置组合。
func (c *Config) Validate() error {
	if c.Markers.PauseMinMs <= 0 || c.Markers.PauseMinMs > c.Markers.PauseMaxMs {
		return fmt.Errorf("停顿时长范围无效: %d-%d ms", c.Markers.PauseMinMs, c.Markers.PauseMaxMs)
	}
	if c.Compositor.PitchSemitones < -12 || c.Compositor.PitchSemitones > 12 {
		return fmt.Errorf("变调半音数超出范围 [-12, 12]: %v", c.Compositor.PitchSemitones)
	}
	if c.Compositor.Concurrency < 1 {
		return fmt.Errorf("并发数必须至少为 1: %d", c.Compositor.Concurrency)
	}
	if j := c.TTS.JitterAmount(); j < 0 || j >= 1 {
		return fmt.Errorf("语速扰动幅度超出范围 [0, 1): %v", j)
	}
	if len(c.Voices.Profiles) == 0 {
		return fmt.Errorf("未配置任何音色")
	}
	if _, ok := c.Voices.Profiles[c.Voices.Default]; !ok {
		return fmt.Errorf("默认音色 %q 不在音色列表中", c.Voices.Default)
	}
	for key, p := range c.Voices.Profiles {
		switch strings.ToLower(p.Engine) {
		case "edge", "tencent", "piper", "say":
		default:
			return fmt.Errorf("音色 %q 使用了未知的 TTS 引擎: %q", key, p.Engine)
		}
	}
	return nil
}

// DefaultTones 内置语气表，配置中的同名项会覆盖。
func DefaultTones() map[string]ToneConfig {
	return map[string]ToneConfig{
		"neutral":  {Rate: 1.0, Expressiveness: 1.0},
		"calm":     {Rate: 0.92, Expressiveness: 0.9},
		"agitated": {Rate: 1.15, Expressiveness: 1.3},
		"excited":  {Rate: 1.1, Expressiveness: 1.2},
	}
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.Database.Path = home + "/.speechmix/speechmix.db"
		} else {
			cfg.Database.Path = "./speechmix.db"
		}
	} else if strings.HasPrefix(cfg.Database.Path, "~/") {
		// Go 不会自动展开 ~，需要手动替换为用户主目录
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.Database.Path = home + cfg.Database.Path[1:]
		}
	}

	if len(cfg.Voices.Profiles) == 0 {
		cfg.Voices.Profiles = map[string]VoiceProfile{
			"default": {Engine: "edge", Voice: "en-US-GuyNeural"},
		}
	}
	if cfg.Voices.Default == "" {
		cfg.Voices.Default = "default"
	}

	if cfg.TTS.RateMultiplier == 0 {
		cfg.TTS.RateMultiplier = 1.0
	}
	if cfg.TTS.Jitter == nil {
		jitter := 0.05
		cfg.TTS.Jitter = &jitter
	}
	tones := DefaultTones()
	for name, tone := range cfg.TTS.Tones {
		tones[strings.ToLower(name)] = tone
	}
	cfg.TTS.Tones = tones
	if cfg.TTS.Tencent.Region == "" {
		cfg.TTS.Tencent.Region = "ap-guangzhou"
	}
	if cfg.TTS.Piper.Binary == "" {
		cfg.TTS.Piper.Binary = "piper"
	}
	if cfg.TTS.Piper.SampleRate == 0 {
		cfg.TTS.Piper.SampleRate = 22050
	}

	if cfg.Markers.AssetDir == "" {
		cfg.Markers.AssetDir = "./assets/sounds"
	}
	if cfg.Markers.PauseMinMs == 0 {
		cfg.Markers.PauseMinMs = 400
	}
	if cfg.Markers.PauseMaxMs == 0 {
		cfg.Markers.PauseMaxMs = 600
	}

	if cfg.Compositor.FFmpeg == "" {
		cfg.Compositor.FFmpeg = "ffmpeg -hide_banner -loglevel error"
	}
	if cfg.Compositor.PitchSemitones == 0 {
		cfg.Compositor.PitchSemitones = -2
	}
	if cfg.Compositor.SampleRate == 0 {
		cfg.Compositor.SampleRate = 48000
	}
	if cfg.Compositor.Channels == 0 {
		cfg.Compositor.Channels = 2
	}
	if cfg.Compositor.Bitrate == "" {
		cfg.Compositor.Bitrate = "128k"
	}
	if cfg.Compositor.Concurrency == 0 {
		cfg.Compositor.Concurrency = 4
	}
	if cfg.Compositor.ChunkChars == 0 {
		cfg.Compositor.ChunkChars = 300
	}
	if cfg.Compositor.FallbackText == "" {
		cfg.Compositor.FallbackText = "no response generated"
	}

	// 去除密钥两端可能的空白（环境变量展开后常见）
	cfg.TTS.Tencent.SecretID = strings.TrimSpace(cfg.TTS.Tencent.SecretID)
	cfg.TTS.Tencent.SecretKey = strings.TrimSpace(cfg.TTS.Tencent.SecretKey)
}
