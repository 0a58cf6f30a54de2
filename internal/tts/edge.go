package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/iabetor/speechmix/internal/logger"
	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"
)

// edgeDrainIdle 收尾时等待残留消息的空闲时间，超过后关闭输出通道。
const edgeDrainIdle = 2 * time.Second

// EdgeEngine 使用微软 Edge TTS 实现语音合成，直接返回服务端的 MP3 数据。
type EdgeEngine struct{}

// NewEdgeEngine 创建 Edge TTS 引擎。音色由每次请求的 Voice.Name 指定。
func NewEdgeEngine() *EdgeEngine {
	return &EdgeEngine{}
}

func (e *EdgeEngine) Name() string { return "edge" }

// RateRange Edge TTS 接受 -50% 到 +100% 的语速调整。
func (e *EdgeEngine) RateRange() (lo, hi float64) { return 0.5, 2.0 }

// Synthesize 通过 edge-tts-go 的流式接口收集 MP3 音频块。
func (e *EdgeEngine) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	rate := edgeRate(req.Rate)
	logger.Debugf("[tts] edge-tts: 正在合成 %d 个字符，语音=%s，语速=%s", len([]rune(req.Text)), req.Voice.Name, rate)

	comm, err := edge.NewCommunicate(req.Text, edge.WithVoice(req.Voice.Name), edge.WithRate(rate))
	if err != nil {
		return nil, fmt.Errorf("创建实例失败: %w", err)
	}

	ch, err := comm.Stream()
	if err != nil {
		return nil, fmt.Errorf("开始流式合成失败: %w", err)
	}
	// 每个分段一个发送协程，通道无缓冲，返回前必须读空再关闭
	defer func() { go drainEdge(ch, comm.CloseOutput, edgeDrainIdle) }()

	data, err := collectEdgeAudio(ctx, ch, comm.AudioDataIndex)
	if err != nil {
		return nil, err
	}

	logger.Debugf("[tts] edge-tts: 收到 %d 字节 MP3 数据", len(data))
	return &Audio{Data: data, Format: FormatMP3}, nil
}

// collectEdgeAudio 读取 Stream 的消息直到收到 parts 个 end，按分段序号拼接音频。
func collectEdgeAudio(ctx context.Context, ch <-chan map[string]interface{}, parts int) ([]byte, error) {
	if parts <= 0 {
		parts = 1
	}
	chunks := make([][]byte, parts)
	ends := 0
	for ends < parts {
		var msg map[string]interface{}
		var ok bool
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg, ok = <-ch:
		}
		if !ok {
			return nil, errors.New("音频流提前结束")
		}

		if e, isErr := msg["error"]; isErr {
			return nil, fmt.Errorf("edge-tts 返回错误: %v", e)
		}
		if _, isEnd := msg["end"]; isEnd {
			ends++
			continue
		}
		if t, _ := msg["type"].(string); t != "audio" {
			continue
		}
		d, isAudio := msg["data"].(edge.AudioData)
		if !isAudio {
			return nil, fmt.Errorf("音频消息格式异常: %T", msg["data"])
		}
		if d.Index < 0 || d.Index >= parts {
			return nil, fmt.Errorf("音频分段序号越界: %d/%d", d.Index, parts)
		}
		chunks[d.Index] = append(chunks[d.Index], d.Data...)
	}

	data := bytes.Join(chunks, nil)
	if len(data) == 0 {
		return nil, errors.New("未收到音频数据")
	}
	return data, nil
}

// drainEdge 持续读通道直到空闲 idle，然后调用 closeFn 释放阻塞中的发送方。
// 通道已被关闭时直接返回。
func drainEdge(ch <-chan map[string]interface{}, closeFn func(), idle time.Duration) {
	timer := time.NewTimer(idle)
	defer timer.Stop()
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
			timer.Reset(idle)
		case <-timer.C:
			closeFn()
			return
		}
	}
}

// edgeRate 把语速倍率转换为 Edge 的百分比写法，如 1.15 -> "+15%"。
func edgeRate(rate float64) string {
	if rate <= 0 {
		rate = 1
	}
	return fmt.Sprintf("%+d%%", int(math.Round((rate-1)*100)))
}
