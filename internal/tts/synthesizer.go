package tts

import (
	"context"
	"fmt"
	"strings"

	"github.com/iabetor/speechmix/internal/config"
	"github.com/iabetor/speechmix/internal/logger"
)

// Synthesizer 把 voice key 解析为后端音色，按语气计算语速后调用对应引擎。
// 只读，可被多个请求并发使用。
type Synthesizer struct {
	engines      map[string]Engine
	voices       map[string]Voice
	defaultVoice string
	policy       *RatePolicy
}

// NewSynthesizer 创建合成适配器。每个音色引用的引擎都必须存在。
func NewSynthesizer(voices map[string]Voice, defaultVoice string, engines []Engine, policy *RatePolicy) (*Synthesizer, error) {
	byName := make(map[string]Engine, len(engines))
	for _, e := range engines {
		byName[e.Name()] = e
	}
	for key, v := range voices {
		if _, ok := byName[v.Engine]; !ok {
			return nil, fmt.Errorf("[tts] 音色 %q 引用了未初始化的引擎 %q", key, v.Engine)
		}
	}
	if _, ok := voices[defaultVoice]; !ok {
		return nil, fmt.Errorf("[tts] 默认音色 %q 不存在", defaultVoice)
	}
	if policy == nil {
		policy = NewRatePolicy(nil, 1, 0, nil)
	}
	return &Synthesizer{
		engines:      byName,
		voices:       voices,
		defaultVoice: defaultVoice,
		policy:       policy,
	}, nil
}

// Resolve 返回 voice key 对应的音色，未知 key 回退到默认音色。
func (s *Synthesizer) Resolve(key string) Voice {
	if v, ok := s.voices[key]; ok {
		return v
	}
	if key != "" {
		logger.Warnf("[tts] 未知音色 %q，使用默认音色 %q", key, s.defaultVoice)
	}
	return s.voices[s.defaultVoice]
}

// Synthesize 合成一段文字，中间文件写在 workDir 下。失败时返回 *SynthesisError。
func (s *Synthesizer) Synthesize(ctx context.Context, text, voiceKey, tone, workDir string) (*Audio, error) {
	voice := s.Resolve(voiceKey)
	engine := s.engines[voice.Engine]

	lo, hi := engine.RateRange()
	rate, expressiveness := s.policy.Params(tone, lo, hi)

	audio, err := engine.Synthesize(ctx, Request{
		Text:           text,
		Voice:          voice,
		Rate:           rate,
		Expressiveness: expressiveness,
		WorkDir:        workDir,
	})
	if err != nil {
		return nil, &SynthesisError{Engine: engine.Name(), Voice: voice.Key, Err: err}
	}
	if audio == nil || len(audio.Data) == 0 {
		return nil, &SynthesisError{Engine: engine.Name(), Voice: voice.Key, Err: fmt.Errorf("未返回音频数据")}
	}
	return audio, nil
}

// New 根据配置创建合成适配器，只初始化音色实际用到的引擎。
func New(cfg *config.Config) (*Synthesizer, error) {
	voices := make(map[string]Voice, len(cfg.Voices.Profiles))
	needed := map[string]bool{}
	for key, p := range cfg.Voices.Profiles {
		voices[key] = Voice{
			Key:       key,
			Engine:    strings.ToLower(p.Engine),
			Name:      p.Voice,
			VoiceType: p.VoiceType,
			Emotion:   p.Emotion,
			ModelPath: p.ModelPath,
		}
		needed[strings.ToLower(p.Engine)] = true
	}

	var engines []Engine
	for name := range needed {
		switch name {
		case "edge":
			engines = append(engines, NewEdgeEngine())
		case "tencent":
			e, err := NewTencentEngine(TencentConfig{
				SecretID:  cfg.TTS.Tencent.SecretID,
				SecretKey: cfg.TTS.Tencent.SecretKey,
				Region:    cfg.TTS.Tencent.Region,
			})
			if err != nil {
				return nil, err
			}
			engines = append(engines, e)
		case "piper":
			engines = append(engines, NewPiperEngine(cfg.TTS.Piper.Binary, cfg.TTS.Piper.SampleRate))
		case "say":
			engines = append(engines, NewSayEngine())
		default:
			return nil, fmt.Errorf("[tts] 未知的 TTS 引擎: %s", name)
		}
		logger.Infof("[tts] 已启用 TTS 引擎: %s", name)
	}

	tones := make(map[string]Tone, len(cfg.TTS.Tones))
	for name, t := range cfg.TTS.Tones {
		tones[name] = Tone{Rate: t.Rate, Expressiveness: t.Expressiveness}
	}
	policy := NewRatePolicy(tones, cfg.TTS.RateMultiplier, cfg.TTS.JitterAmount(), nil)

	return NewSynthesizer(voices, cfg.Voices.Default, engines, policy)
}
