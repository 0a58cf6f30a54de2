// Package ffmpeg 通过一次 ffmpeg 调用完成变调和按序拼接。
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/iabetor/speechmix/internal/logger"
	"github.com/mattn/go-shellwords"
)

// Options 转码参数。
type Options struct {
	// Command 命令前缀，如 "ffmpeg -hide_banner -loglevel error"。
	Command        string
	PitchSemitones float64
	SampleRate     int
	Channels       int
	Bitrate        string
}

// Transcoder 每次合成只启动一个 ffmpeg 进程，滤镜图按输入数量动态生成。
type Transcoder struct {
	cmd  []string
	opts Options
}

// Error ffmpeg 执行失败，Output 为其 stderr 输出。
type Error struct {
	Err    error
	Output string
}

func (e *Error) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("[ffmpeg] 执行失败: %v", e.Err)
	}
	return fmt.Sprintf("[ffmpeg] 执行失败: %v: %s", e.Err, e.Output)
}

func (e *Error) Unwrap() error { return e.Err }

// New 解析命令前缀并创建 Transcoder。
func New(opts Options) (*Transcoder, error) {
	if opts.Command == "" {
		opts.Command = "ffmpeg"
	}
	args, err := shellwords.Parse(opts.Command)
	if err != nil {
		return nil, fmt.Errorf("[ffmpeg] 解析命令失败: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("[ffmpeg] 命令为空")
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 48000
	}
	if opts.Channels <= 0 {
		opts.Channels = 2
	}
	if opts.Bitrate == "" {
		opts.Bitrate = "128k"
	}
	return &Transcoder{cmd: args, opts: opts}, nil
}

// Compose 把 inputs 按顺序拼接为一个 MP3 写入 output。
// pitchMask[i] 为 true 的输入做保持时长的变调，其余原样通过。
// ctx 取消时 ffmpeg 进程会被杀掉。
func (t *Transcoder) Compose(ctx context.Context, inputs []string, pitchMask []bool, output string) error {
	args, err := t.Args(inputs, pitchMask, output)
	if err != nil {
		return err
	}

	logger.Debugf("[ffmpeg] 拼接 %d 个片段 -> %s", len(inputs), output)

	cmd := exec.CommandContext(ctx, t.cmd[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// 子进程可能继承 stderr，取消后不无限等待管道关闭
	cmd.WaitDelay = 2 * time.Second

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return &Error{Err: err, Output: strings.TrimSpace(stderr.String())}
	}
	return nil
}

// Args 生成完整的 ffmpeg 参数列表（不含可执行文件本身）。
func (t *Transcoder) Args(inputs []string, pitchMask []bool, output string) ([]string, error) {
	if len(inputs) == 0 {
		return nil, errors.New("[ffmpeg] 没有输入")
	}
	if len(pitchMask) != len(inputs) {
		return nil, fmt.Errorf("[ffmpeg] pitchMask 长度 %d 与输入数 %d 不一致", len(pitchMask), len(inputs))
	}

	args := append([]string{}, t.cmd[1:]...)
	args = append(args, "-y")
	for _, in := range inputs {
		args = append(args, "-i", in)
	}
	args = append(args,
		"-filter_complex", t.FilterGraph(pitchMask),
		"-map", "[out]",
		"-vn",
		"-ar", strconv.Itoa(t.opts.SampleRate),
		"-ac", strconv.Itoa(t.opts.Channels),
		"-c:a", "libmp3lame",
		"-b:a", t.opts.Bitrate,
		"-f", "mp3",
		output,
	)
	return args, nil
}

// FilterGraph 每个输入先统一采样率和声道布局，需要变调的再经过
// asetrate（改变音高和速度）、aresample（恢复采样率）、atempo（恢复时长），最后 concat。
func (t *Transcoder) FilterGraph(pitchMask []bool) string {
	sr := t.opts.SampleRate
	layout := channelLayout(t.opts.Channels)
	ratio := PitchRatio(t.opts.PitchSemitones)

	var b strings.Builder
	for i, pitched := range pitchMask {
		fmt.Fprintf(&b, "[%d:a]aresample=%d,aformat=sample_fmts=fltp:channel_layouts=%s", i, sr, layout)
		if pitched && ratio != 1 {
			fmt.Fprintf(&b, ",asetrate=%s,aresample=%d,atempo=%s",
				formatFloat(float64(sr)*ratio), sr, formatFloat(1/ratio))
		}
		fmt.Fprintf(&b, "[s%d];", i)
	}
	for i := range pitchMask {
		fmt.Fprintf(&b, "[s%d]", i)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=0:a=1[out]", len(pitchMask))
	return b.String()
}

// PitchRatio 半音数对应的频率比。
func PitchRatio(semitones float64) float64 {
	return math.Pow(2, semitones/12)
}

func channelLayout(channels int) string {
	if channels == 1 {
		return "mono"
	}
	return "stereo"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// Check 检查转码程序是否在 PATH 中。
func (t *Transcoder) Check() error {
	if _, err := exec.LookPath(t.cmd[0]); err != nil {
		return fmt.Errorf("[ffmpeg] 找不到 %s: %w", t.cmd[0], err)
	}
	return nil
}
