package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/iabetor/speechmix/internal/logger"
)

// PiperEngine 使用 piper CLI 子进程实现离线语音合成。
type PiperEngine struct {
	binary     string
	sampleRate int
}

// NewPiperEngine 创建 Piper TTS 引擎。sampleRate 为模型输出的采样率。
func NewPiperEngine(binary string, sampleRate int) *PiperEngine {
	if binary == "" {
		binary = "piper"
	}
	if sampleRate == 0 {
		sampleRate = 22050
	}
	return &PiperEngine{binary: binary, sampleRate: sampleRate}
}

func (p *PiperEngine) Name() string { return "piper" }

// RateRange piper 通过 length_scale 调整语速。
func (p *PiperEngine) RateRange() (lo, hi float64) { return 0.5, 2.0 }

// Synthesize 使用 piper CLI 将文本转换为 signed 16-bit LE 单声道 PCM。
func (p *PiperEngine) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	logger.Debugf("[tts] piper: 正在合成 %d 个字符，模型=%s", len([]rune(req.Text)), req.Voice.ModelPath)

	cmd := exec.CommandContext(ctx, p.binary, p.args(req)...)
	cmd.Stdin = bytes.NewReader([]byte(req.Text))

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if s := stderr.String(); s != "" {
			logger.Warnf("[tts] piper stderr: %s", s)
		}
		return nil, fmt.Errorf("piper 执行失败: %w", err)
	}

	if stdout.Len() == 0 {
		return nil, errors.New("未收到音频数据")
	}

	logger.Debugf("[tts] piper: 收到 %d 字节原始 PCM", stdout.Len())
	return &Audio{
		Data:       stdout.Bytes(),
		Format:     FormatPCM16,
		SampleRate: p.sampleRate,
		Channels:   1,
	}, nil
}

// args length_scale 是语速的倒数：数值越大说得越慢。
func (p *PiperEngine) args(req Request) []string {
	rate := req.Rate
	if rate <= 0 {
		rate = 1
	}
	return []string{
		"--model", req.Voice.ModelPath,
		"--output-raw",
		"--length_scale", strconv.FormatFloat(1/rate, 'f', 3, 64),
	}
}
