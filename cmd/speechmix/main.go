package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iabetor/speechmix/internal/config"
	"github.com/iabetor/speechmix/internal/logger"
	"github.com/iabetor/speechmix/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "configs/speechmix.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infof("[main] speechmix 启动中 (log_level=%s)", cfg.Log.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听系统信号，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("[main] 收到信号 %v，正在关闭...", sig)
		cancel()
	}()

	p, err := pipeline.New(cfg)
	if err != nil {
		logger.Errorf("[main] 创建流水线失败: %v", err)
		logger.Sync()
		os.Exit(1)
	}
	defer p.Close()

	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("[main] 服务运行出错: %v", err)
		p.Close()
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("[main] speechmix 已停止")
}
