package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/iabetor/speechmix/internal/assets"
	"github.com/iabetor/speechmix/internal/compositor"
	"github.com/iabetor/speechmix/internal/config"
	"github.com/iabetor/speechmix/internal/database"
	"github.com/iabetor/speechmix/internal/ffmpeg"
	"github.com/iabetor/speechmix/internal/logger"
	"github.com/iabetor/speechmix/internal/segment"
	"github.com/iabetor/speechmix/internal/server"
	"github.com/iabetor/speechmix/internal/tts"
)

// Pipeline 是主编排器，把配置中的各组件串联成合成服务。
type Pipeline struct {
	cfg *config.Config

	db      *database.DB
	history *database.CompositionLog

	compositor *compositor.Compositor
}

// New 创建并初始化所有组件。
func New(cfg *config.Config) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg}

	var options []compositor.Option
	if cfg.Database.Path != "-" {
		db, err := database.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
		p.db = db
		p.history = database.NewCompositionLog(db)
		options = append(options, compositor.WithRecorder(p.history))
	} else {
		logger.Info("[pipeline] 合成记录已禁用")
	}

	if err := p.init(cfg, options); err != nil {
		p.Close()
		return nil, err
	}

	logger.Info("[pipeline] 所有组件初始化完成")
	return p, nil
}

func (p *Pipeline) init(cfg *config.Config, options []compositor.Option) error {
	synth, err := tts.New(cfg)
	if err != nil {
		return fmt.Errorf("初始化 TTS 失败: %w", err)
	}

	resolver := assets.NewResolver(cfg.Markers.AssetDir, cfg.Markers.Sounds)
	for _, m := range resolver.Markers() {
		if _, err := resolver.Resolve(m); err != nil {
			// 缺失的音效在合成时会被跳过，这里提前提示
			logger.Warnf("[pipeline] %v", err)
		}
	}

	parser, err := segment.NewParser(resolver.Markers(), cfg.Markers.PauseMinMs, cfg.Markers.PauseMaxMs)
	if err != nil {
		return err
	}

	transcoder, err := ffmpeg.New(ffmpeg.Options{
		Command:        cfg.Compositor.FFmpeg,
		PitchSemitones: cfg.Compositor.PitchSemitones,
		SampleRate:     cfg.Compositor.SampleRate,
		Channels:       cfg.Compositor.Channels,
		Bitrate:        cfg.Compositor.Bitrate,
	})
	if err != nil {
		return err
	}
	if err := transcoder.Check(); err != nil {
		logger.Warnf("[pipeline] %v", err)
	}

	p.compositor = compositor.New(parser, synth, resolver, transcoder, compositor.Options{
		TempDir:      cfg.Compositor.TempDir,
		Concurrency:  cfg.Compositor.Concurrency,
		FallbackText: cfg.Compositor.FallbackText,
		SampleRate:   cfg.Compositor.SampleRate,
		Channels:     cfg.Compositor.Channels,
		ChunkChars:   cfg.Compositor.ChunkChars,
	}, options...)

	logger.Infof("[pipeline] 音效标记 %d 个，变调 %+.1f 半音，并发 %d",
		len(resolver.Markers()), cfg.Compositor.PitchSemitones, cfg.Compositor.Concurrency)
	return nil
}

// Compositor 返回合成编排器。
func (p *Pipeline) Compositor() *compositor.Compositor {
	return p.compositor
}

// ComposeText 实现 server.Composer。
func (p *Pipeline) ComposeText(ctx context.Context, voice, tone, text string) (server.Audio, error) {
	s, err := p.compositor.ComposeText(ctx, voice, tone, text)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// History 返回合成记录查询，记录被禁用时为 nil。
func (p *Pipeline) History() server.History {
	if p.history == nil {
		return nil
	}
	return p.history
}

// Run 启动 HTTP 服务，阻塞直到 ctx 取消。
func (p *Pipeline) Run(ctx context.Context) error {
	timeout := time.Duration(p.cfg.Server.RequestTimeout) * time.Second
	srv := server.New(p.cfg.Server.Addr, p, p.History(), timeout)
	return srv.ListenAndServe(ctx)
}

// Close 释放所有资源。
func (p *Pipeline) Close() {
	logger.Info("[pipeline] 正在关闭...")

	if p.db != nil {
		if err := p.db.Close(); err != nil {
			logger.Warnf("[pipeline] 关闭数据库失败: %v", err)
		}
		p.db = nil
	}

	logger.Info("[pipeline] 已关闭")
}
