package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// ErrEmptyAudio 音频文件不存在有效内容。
var ErrEmptyAudio = errors.New("[audio] 音频内容为空")

// Probe 检查 path 是一个可读、非空的音频文件，返回其时长。
// MP3 和 WAV 会被解析；其他格式只检查文件大小，时长返回 0。
func Probe(path string) (time.Duration, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("[audio] 读取音频文件信息失败: %w", err)
	}
	if info.Size() == 0 {
		return 0, ErrEmptyAudio
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return probeMP3(path)
	case ".wav":
		return probeWAV(path)
	default:
		return 0, nil
	}
}

func probeMP3(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("[audio] 打开 MP3 失败: %w", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, fmt.Errorf("[audio] MP3 解码失败: %w", err)
	}

	// go-mp3 固定输出 16-bit 立体声，每帧 4 字节
	const bytesPerFrame = 4
	length := decoder.Length()
	if length <= 0 {
		return 0, ErrEmptyAudio
	}
	return DurationOf(length/bytesPerFrame, decoder.SampleRate()), nil
}

func probeWAV(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("[audio] 打开 WAV 失败: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if err := d.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("[audio] WAV 解析失败: %w", err)
	}
	frameBytes := int64(d.NumChans) * int64(d.BitDepth/8)
	if frameBytes == 0 || d.PCMLen() == 0 {
		return 0, ErrEmptyAudio
	}
	return DurationOf(d.PCMLen()/frameBytes, int(d.SampleRate)), nil
}
