package tts

import (
	"context"
	"fmt"
)

// Format 合成结果的音频格式。
type Format string

const (
	FormatMP3   Format = "mp3"
	FormatWAV   Format = "wav"
	FormatPCM16 Format = "pcm_s16le" // 裸 PCM，需要 SampleRate/Channels
)

// Audio 合成后端返回的原始音频。
type Audio struct {
	Data       []byte
	Format     Format
	SampleRate int // 仅 FormatPCM16 使用
	Channels   int // 仅 FormatPCM16 使用
}

// Voice 音色在某个后端上的身份。
type Voice struct {
	Key       string
	Engine    string
	Name      string // edge 音色名 / say 语音名
	VoiceType int64  // 腾讯云音色 ID
	Emotion   string // 腾讯云情感类别
	ModelPath string // piper 模型
}

// Request 一次合成请求，Rate 和 Expressiveness 已由 RatePolicy 计算并钳位。
type Request struct {
	Text           string
	Voice          Voice
	Rate           float64
	Expressiveness float64
	// WorkDir 需要落盘的后端在此目录下创建中间文件，为空时使用系统临时目录。
	WorkDir string
}

// Engine 定义语音合成后端接口。
type Engine interface {
	// Name 返回后端名称，与配置中的 engine 字段一致。
	Name() string
	// Synthesize 将文本转换为音频。
	Synthesize(ctx context.Context, req Request) (*Audio, error)
	// RateRange 返回后端接受的语速倍率范围（闭区间）。
	RateRange() (lo, hi float64)
}

// SynthesisError 单个片段合成失败。调用方丢弃该片段，不影响其他片段。
type SynthesisError struct {
	Engine string
	Voice  string
	Err    error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("[tts] %s 合成失败 (voice=%s): %v", e.Engine, e.Voice, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
