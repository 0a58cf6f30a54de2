// compose 离线合成一段带标记的文本并写入 MP3 文件，用于调试标记和变调参数。
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/iabetor/speechmix/internal/config"
	"github.com/iabetor/speechmix/internal/logger"
	"github.com/iabetor/speechmix/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "configs/speechmix.yaml", "配置文件路径")
	text := flag.String("text", "", "要合成的文本，为空时从标准输入读取")
	voice := flag.String("voice", "", "音色 key，为空使用默认音色")
	tone := flag.String("tone", "neutral", "语气")
	out := flag.String("out", "out.mp3", "输出文件路径")
	flag.Parse()

	if err := run(*configPath, *text, *voice, *tone, *out); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(configPath, text, voice, tone, out string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	// 离线工具不写合成记录
	cfg.Database.Path = "-"

	if err := logger.Init(logger.Config{Level: cfg.Log.Level}); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer logger.Sync()

	if text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("读取标准输入失败: %w", err)
		}
		text = string(data)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(cfg)
	if err != nil {
		return fmt.Errorf("创建流水线失败: %w", err)
	}
	defer p.Close()

	stream, err := p.Compositor().ComposeText(ctx, voice, tone, text)
	if err != nil {
		return err
	}
	defer stream.Close()

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("创建输出文件失败: %w", err)
	}
	n, err := io.Copy(f, stream)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("写入输出文件失败: %w", err)
	}

	r := stream.Report()
	fmt.Printf("%s: %d 字节, 时长 %v, 片段 %d (丢弃 %d, 兜底 %v), 请求 %s\n",
		out, n, r.Audio, r.Materialized, r.Dropped, r.Fallback, r.ID)
	return nil
}
