// Package compositor 把带标记的文本合成为一段连续的 MP3。
//
// 每个请求在独占的临时目录中把片段逐个落盘（语音、静音、音效），
// 再通过一次转码调用按原顺序变调并拼接，最后以流的形式交给调用方。
// 无论成功还是失败，临时文件都只在一处被清理一次。
package compositor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iabetor/speechmix/internal/assets"
	"github.com/iabetor/speechmix/internal/audio"
	"github.com/iabetor/speechmix/internal/database"
	"github.com/iabetor/speechmix/internal/logger"
	"github.com/iabetor/speechmix/internal/segment"
	"github.com/iabetor/speechmix/internal/tts"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Synthesizer 文字转语音。workDir 为本次合成的工作目录，后端的中间文件只能写在这里。
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceKey, tone, workDir string) (*tts.Audio, error)
}

// AssetResolver 音效标记到本地文件。
type AssetResolver interface {
	Resolve(marker string) (string, error)
}

// Segmenter 文本切分。
type Segmenter interface {
	Parse(text string) []segment.Segment
}

// Transcoder 一次调用完成变调和拼接，pitchMask 与 inputs 一一对应。
type Transcoder interface {
	Compose(ctx context.Context, inputs []string, pitchMask []bool, output string) error
}

// Recorder 记录每次合成的摘要。
type Recorder interface {
	Record(ctx context.Context, c database.Composition) error
}

// Options 合成参数。
type Options struct {
	TempDir      string
	Concurrency  int
	FallbackText string
	// SampleRate / Channels 用于生成静音片段，应与转码输出一致。
	SampleRate int
	Channels   int
	// ChunkChars 长文字片段的按句拆分阈值，<= 0 不拆分。
	ChunkChars int
}

// Request 一次合成请求。
type Request struct {
	// ID 为空时自动生成。
	ID       string
	Voice    string
	Tone     string
	Segments []segment.Segment
}

// Report 一次合成的统计。
type Report struct {
	ID    string
	Voice string
	Tone  string
	// Segments 非空白片段数
	Segments     int
	Materialized int
	Dropped      int
	Fallback     bool
	Audio        time.Duration
}

// Compositor 合成编排器，可被多个请求并发使用。
type Compositor struct {
	parser     Segmenter
	synth      Synthesizer
	resolver   AssetResolver
	transcoder Transcoder
	recorder   Recorder
	opts       Options
}

// Option 配置 Compositor。
type Option func(*Compositor)

// WithRecorder 启用合成记录。
func WithRecorder(r Recorder) Option {
	return func(c *Compositor) { c.recorder = r }
}

// New 创建合成编排器。
func New(parser Segmenter, synth Synthesizer, resolver AssetResolver, transcoder Transcoder, opts Options, options ...Option) *Compositor {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.FallbackText == "" {
		opts.FallbackText = "no response generated"
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 48000
	}
	if opts.Channels <= 0 {
		opts.Channels = 2
	}
	c := &Compositor{
		parser:     parser,
		synth:      synth,
		resolver:   resolver,
		transcoder: transcoder,
		opts:       opts,
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// ComposeText 切分 text 后合成。
func (c *Compositor) ComposeText(ctx context.Context, voice, tone, text string) (*Stream, error) {
	return c.Compose(ctx, Request{
		Voice:    voice,
		Tone:     tone,
		Segments: c.parser.Parse(text),
	})
}

// clip 一个已落盘的片段。
type clip struct {
	path   string
	pitch  bool
	speech bool
}

// Compose 合成一组有序片段。
// 成功时返回的 Stream 必须被读完或关闭；失败时临时文件已被清理，错误为 *CompositionError。
func (c *Compositor) Compose(ctx context.Context, req Request) (*Stream, error) {
	start := time.Now()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	log := logger.With("request_id", req.ID)
	req.Segments = segment.Chunk(req.Segments, c.opts.ChunkChars)

	report := Report{ID: req.ID, Voice: req.Voice, Tone: req.Tone}
	for _, s := range req.Segments {
		if !s.Blank() {
			report.Segments++
		}
	}

	ws, err := newWorkspace(c.opts.TempDir, req.ID, log)
	if err != nil {
		err = &CompositionError{RequestID: req.ID, Stage: "准备", Err: err}
		c.record(ctx, report, start, err)
		return nil, err
	}

	stream, err := c.compose(ctx, ws, req, &report, log)
	if err != nil {
		ws.release()
		var ce *CompositionError
		if !errors.As(err, &ce) {
			err = &CompositionError{RequestID: req.ID, Stage: "合成", Err: err}
		}
		log.Errorf("[compositor] %v", err)
		c.record(ctx, report, start, err)
		return nil, err
	}

	log.Infof("[compositor] 合成完成: %d 个片段，落盘 %d，丢弃 %d，兜底 %v，时长 %v，耗时 %v",
		report.Segments, report.Materialized, report.Dropped, report.Fallback,
		report.Audio, time.Since(start))
	c.record(ctx, report, start, nil)
	return stream, nil
}

func (c *Compositor) compose(ctx context.Context, ws *workspace, req Request, report *Report, log *zap.SugaredLogger) (*Stream, error) {
	clips, err := c.materialize(ctx, ws, req, log)
	if err != nil {
		return nil, err
	}

	var kept []clip
	hasSpeech := false
	for _, cl := range clips {
		if cl == nil {
			continue
		}
		kept = append(kept, *cl)
		hasSpeech = hasSpeech || cl.speech
	}
	report.Materialized = len(kept)
	report.Dropped = report.Segments - len(kept)

	if !hasSpeech {
		log.Warnf("[compositor] 没有可用的语音片段，使用兜底语音 %q", c.opts.FallbackText)
		for _, cl := range kept {
			ws.discard(cl.path)
		}
		fb, err := c.synthesizeClip(ctx, ws, "fallback", c.opts.FallbackText, req.Voice, req.Tone)
		if err != nil {
			return nil, &CompositionError{RequestID: req.ID, Stage: "兜底语音合成", Err: err}
		}
		kept = []clip{fb}
		report.Fallback = true
		report.Materialized = 1
	}

	if err := ctx.Err(); err != nil {
		return nil, &CompositionError{RequestID: req.ID, Stage: "拼接", Err: err}
	}

	inputs := make([]string, len(kept))
	mask := make([]bool, len(kept))
	for i, cl := range kept {
		inputs[i] = cl.path
		mask[i] = cl.pitch
	}

	output := ws.path("merged.mp3")
	if err := c.transcoder.Compose(ctx, inputs, mask, output); err != nil {
		return nil, &CompositionError{RequestID: req.ID, Stage: "拼接", Err: err}
	}
	d, err := audio.Probe(output)
	switch {
	case errors.Is(err, audio.ErrEmptyAudio), errors.Is(err, fs.ErrNotExist):
		return nil, &CompositionError{RequestID: req.ID, Stage: "校验输出", Err: err}
	case err != nil:
		log.Warnf("[compositor] 无法解析输出时长: %v", err)
	}
	report.Audio = d

	stream, err := newStream(output, ws, *report)
	if err != nil {
		return nil, &CompositionError{RequestID: req.ID, Stage: "打开输出", Err: err}
	}
	return stream, nil
}

// materialize 并发落盘所有非空白片段。结果按片段下标存放，nil 表示被丢弃。
// 只有静音生成失败和取消是致命的。
func (c *Compositor) materialize(ctx context.Context, ws *workspace, req Request, log *zap.SugaredLogger) ([]*clip, error) {
	clips := make([]*clip, len(req.Segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i, seg := range req.Segments {
		if seg.Blank() {
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			cl, err := c.materializeSegment(gctx, ws, req, i, seg, log)
			if err != nil {
				return err
			}
			clips[i] = cl
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &CompositionError{RequestID: req.ID, Stage: "片段准备", Err: err}
	}
	return clips, nil
}

func (c *Compositor) materializeSegment(ctx context.Context, ws *workspace, req Request, i int, seg segment.Segment, log *zap.SugaredLogger) (*clip, error) {
	prefix := fmt.Sprintf("%03d-%s", i, seg.Kind)

	switch seg.Kind {
	case segment.Text:
		cl, err := c.synthesizeClip(ctx, ws, prefix, seg.Text, req.Voice, req.Tone)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &CompositionError{RequestID: req.ID, Stage: "语音合成", Err: ctx.Err()}
			}
			log.Warnf("[compositor] 片段 %d 合成失败，已丢弃: %v", i, err)
			return nil, nil
		}
		return &cl, nil

	case segment.Pause:
		path := ws.path(prefix + ".wav")
		if err := audio.WriteSilence(path, seg.Pause, c.opts.SampleRate, c.opts.Channels); err != nil {
			return nil, &CompositionError{RequestID: req.ID, Stage: "静音生成", Err: err}
		}
		return &clip{path: path}, nil

	case segment.Sound:
		src, err := c.resolver.Resolve(seg.Marker)
		if errors.Is(err, assets.ErrAssetMissing) {
			log.Warnf("[compositor] 片段 %d 音效缺失，已丢弃: %v", i, err)
			return nil, nil
		}
		if err != nil {
			log.Warnf("[compositor] 片段 %d 音效解析失败，已丢弃: %v", i, err)
			return nil, nil
		}
		path := ws.path(prefix + strings.ToLower(filepath.Ext(src)))
		if err := copyFile(src, path); err != nil {
			log.Warnf("[compositor] 片段 %d 复制音效失败，已丢弃: %v", i, err)
			return nil, nil
		}
		return &clip{path: path}, nil

	default:
		return nil, nil
	}
}

// synthesizeClip 合成文字并写入工作目录，写入后校验文件可解析且非空。
func (c *Compositor) synthesizeClip(ctx context.Context, ws *workspace, prefix, text, voice, tone string) (clip, error) {
	a, err := c.synth.Synthesize(ctx, text, voice, tone, ws.dir)
	if err != nil {
		return clip{}, err
	}

	var path string
	switch a.Format {
	case tts.FormatMP3:
		path = ws.path(prefix + ".mp3")
		err = os.WriteFile(path, a.Data, 0644)
	case tts.FormatWAV:
		path = ws.path(prefix + ".wav")
		err = os.WriteFile(path, a.Data, 0644)
	case tts.FormatPCM16:
		channels := a.Channels
		if channels <= 0 {
			channels = 1
		}
		path = ws.path(prefix + ".wav")
		err = audio.WritePCM16(path, a.Data, a.SampleRate, channels)
	default:
		return clip{}, fmt.Errorf("不支持的音频格式 %q", a.Format)
	}
	if err != nil {
		return clip{}, fmt.Errorf("写入语音文件失败: %w", err)
	}
	if _, err := audio.Probe(path); err != nil {
		return clip{}, fmt.Errorf("语音文件无效: %w", err)
	}
	return clip{path: path, pitch: true, speech: true}, nil
}

func (c *Compositor) record(ctx context.Context, r Report, start time.Time, err error) {
	if c.recorder == nil {
		return
	}
	row := database.Composition{
		ID:           r.ID,
		Voice:        r.Voice,
		Tone:         r.Tone,
		Segments:     r.Segments,
		Materialized: r.Materialized,
		Dropped:      r.Dropped,
		Fallback:     r.Fallback,
		Status:       database.StatusOK,
		Duration:     time.Since(start),
		CreatedAt:    start,
	}
	if err != nil {
		row.Status = database.StatusFailed
		row.Error = err.Error()
	}
	// 请求已取消时也要写入失败记录
	if rerr := c.recorder.Record(context.WithoutCancel(ctx), row); rerr != nil {
		logger.Warnf("[compositor] 写入合成记录失败: %v", rerr)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
