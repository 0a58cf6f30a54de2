package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/iabetor/speechmix/internal/logger"
)

// sayBaseWPM 是 macOS say 的默认语速（每分钟词数）。
const sayBaseWPM = 175

// SayEngine 使用 macOS 内置 say 命令实现语音合成，仅在 macOS 上可用，适合本地调试。
type SayEngine struct {
	say     string
	convert string
}

// NewSayEngine 创建 macOS say TTS 引擎。语音名由 Voice.Name 指定，为空时使用系统默认语音。
func NewSayEngine() *SayEngine {
	return &SayEngine{say: "say", convert: "afconvert"}
}

func (s *SayEngine) Name() string { return "say" }

func (s *SayEngine) RateRange() (lo, hi float64) { return 0.5, 2.0 }

// Synthesize say 先输出 AIFF，再用 afconvert 转为 16-bit LE WAV。
// 中间文件建在 req.WorkDir 下，返回前删除。
func (s *SayEngine) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	logger.Debugf("[tts] say: 正在合成 %d 个字符", len([]rune(req.Text)))

	tmpFile, err := os.CreateTemp(req.WorkDir, "say-*.aiff")
	if err != nil {
		return nil, fmt.Errorf("创建临时文件失败: %w", err)
	}
	aiffPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(aiffPath)

	wavPath := aiffPath + ".wav"
	defer os.Remove(wavPath)

	rate := req.Rate
	if rate <= 0 {
		rate = 1
	}
	args := []string{"-o", aiffPath, "-r", strconv.Itoa(int(sayBaseWPM * rate))}
	if req.Voice.Name != "" {
		args = append(args, "-v", req.Voice.Name)
	}
	args = append(args, req.Text)

	cmd := exec.CommandContext(ctx, s.say, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("say 执行失败: %w, stderr: %s", err, stderr.String())
	}

	convertCmd := exec.CommandContext(ctx, s.convert, "-f", "WAVE", "-d", "LEI16@22050", aiffPath, wavPath)
	var convertStderr bytes.Buffer
	convertCmd.Stderr = &convertStderr
	if err := convertCmd.Run(); err != nil {
		return nil, fmt.Errorf("afconvert 执行失败: %w, stderr: %s", err, convertStderr.String())
	}

	wavData, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("读取输出文件失败: %w", err)
	}
	// 只有 44 字节 WAV 头说明没有音频
	if len(wavData) <= 44 {
		return nil, errors.New("未收到音频数据")
	}

	return &Audio{Data: wavData, Format: FormatWAV}, nil
}
