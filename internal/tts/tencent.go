package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/iabetor/speechmix/internal/logger"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	tts "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tts/v20190823"
)

// TencentEngine 使用腾讯云 TTS 实现语音合成。
type TencentEngine struct {
	client *tts.Client
}

// TencentConfig 腾讯云 TTS 凭证配置。
type TencentConfig struct {
	SecretID  string
	SecretKey string
	Region    string
}

// NewTencentEngine 创建腾讯云 TTS 引擎。
func NewTencentEngine(cfg TencentConfig) (*TencentEngine, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("[tts] 腾讯云 TTS 需要 SecretID 和 SecretKey")
	}
	if cfg.Region == "" {
		cfg.Region = "ap-guangzhou"
	}

	credential := common.NewCredential(cfg.SecretID, cfg.SecretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = "tts.tencentcloudapi.com"

	client, err := tts.NewClient(credential, cfg.Region, cpf)
	if err != nil {
		return nil, fmt.Errorf("[tts] 创建腾讯云 TTS 客户端失败: %w", err)
	}

	logger.Infof("[tts] 腾讯云 TTS 引擎已初始化 (region=%s)", cfg.Region)
	return &TencentEngine{client: client}, nil
}

func (e *TencentEngine) Name() string { return "tencent" }

// RateRange 对应腾讯云 Speed 参数 [-2, 6] 的倍率范围。
func (e *TencentEngine) RateRange() (lo, hi float64) { return 0.6, 2.5 }

// Synthesize 调用 TextToVoice，返回 MP3 数据。
func (e *TencentEngine) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	speed := tencentSpeed(req.Rate)
	logger.Debugf("[tts] 腾讯云 TTS: 正在合成 %d 个字符，音色=%d，speed=%.2f", len([]rune(req.Text)), req.Voice.VoiceType, speed)

	request := tts.NewTextToVoiceRequest()
	request.Text = common.StringPtr(req.Text)
	request.SessionId = common.StringPtr(uuid.NewString())
	request.VoiceType = common.Int64Ptr(req.Voice.VoiceType)
	request.Codec = common.StringPtr("mp3")
	request.Speed = common.Float64Ptr(speed)
	request.Volume = common.Float64Ptr(5.0)
	if req.Voice.Emotion != "" {
		request.EmotionCategory = common.StringPtr(req.Voice.Emotion)
		request.EmotionIntensity = common.Int64Ptr(tencentEmotionIntensity(req.Expressiveness))
	}

	response, err := e.client.TextToVoiceWithContext(ctx, request)
	if err != nil {
		return nil, err
	}
	if response.Response == nil || response.Response.Audio == nil {
		return nil, errors.New("未返回音频数据")
	}

	mp3Data, err := base64.StdEncoding.DecodeString(*response.Response.Audio)
	if err != nil {
		return nil, fmt.Errorf("Base64 解码失败: %w", err)
	}
	if len(mp3Data) == 0 {
		return nil, errors.New("未返回音频数据")
	}

	logger.Debugf("[tts] 腾讯云 TTS: 收到 %d 字节 MP3 数据", len(mp3Data))
	return &Audio{Data: mp3Data, Format: FormatMP3}, nil
}

// tencentSpeedPoints 腾讯云文档给出的 Speed 与倍率对应关系，中间值线性插值。
var tencentSpeedPoints = []struct{ rate, speed float64 }{
	{0.6, -2},
	{0.8, -1},
	{1.0, 0},
	{1.2, 1},
	{1.5, 2},
	{2.5, 6},
}

// tencentSpeed 把语速倍率映射为 Speed 参数，保留两位小数。
func tencentSpeed(rate float64) float64 {
	pts := tencentSpeedPoints
	if rate <= pts[0].rate {
		return pts[0].speed
	}
	for i := 1; i < len(pts); i++ {
		if rate <= pts[i].rate {
			a, b := pts[i-1], pts[i]
			s := a.speed + (rate-a.rate)/(b.rate-a.rate)*(b.speed-a.speed)
			return math.Round(s*100) / 100
		}
	}
	return pts[len(pts)-1].speed
}

// tencentEmotionIntensity 表现力 1.0 对应默认强度 100，范围 [50, 200]。
func tencentEmotionIntensity(expressiveness float64) int64 {
	v := int64(math.Round(expressiveness * 100))
	if v < 50 {
		return 50
	}
	if v > 200 {
		return 200
	}
	return v
}
