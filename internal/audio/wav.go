package audio

import (
	"fmt"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitDepth  = 16
	formatPCM = 1
)

// WriteSilence 在 path 写入一段精确时长的静音 WAV（16-bit PCM）。
// 帧数为 d * sampleRate 向下取整，与其他片段使用相同的采样率和声道数，拼接时无需重采样。
func WriteSilence(path string, d time.Duration, sampleRate, channels int) error {
	frames := FramesFor(d, sampleRate)
	if frames <= 0 {
		return fmt.Errorf("[audio] 静音时长无效: %v", d)
	}
	return writeWAV(path, make([]int, frames*channels), sampleRate, channels)
}

// WritePCM16 把 signed 16-bit LE PCM 包装为 WAV 文件写入 path。
func WritePCM16(path string, pcm []byte, sampleRate, channels int) error {
	samples := PCM16ToInts(pcm, channels)
	if len(samples) == 0 {
		return ErrEmptyAudio
	}
	return writeWAV(path, samples, sampleRate, channels)
}

func writeWAV(path string, samples []int, sampleRate, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("[audio] 创建 WAV 文件失败: %w", err)
	}

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, formatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("[audio] 写入 WAV 数据失败: %w", err)
	}
	// Close 回填 RIFF 头中的长度字段，不会关闭文件。
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("[audio] 完成 WAV 文件失败: %w", err)
	}
	return f.Close()
}
