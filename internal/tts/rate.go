package tts

import (
	"math/rand/v2"
	"strings"
	"sync"
)

// Tone 语气对应的基准语速和表现力。
type Tone struct {
	Rate           float64
	Expressiveness float64
}

var neutralTone = Tone{Rate: 1.0, Expressiveness: 1.0}

// RatePolicy 计算每次合成的语速：语气基准 × 全局系数 × (1 ± 随机扰动)，再钳位到后端范围。
// 相同文本、音色、语气的两次调用语速不同是预期行为。
type RatePolicy struct {
	tones      map[string]Tone
	multiplier float64
	jitter     float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRatePolicy 创建语速策略。rng 为 nil 时使用全局随机源。
func NewRatePolicy(tones map[string]Tone, multiplier, jitter float64, rng *rand.Rand) *RatePolicy {
	normalized := make(map[string]Tone, len(tones))
	for name, t := range tones {
		normalized[strings.ToLower(name)] = t
	}
	if multiplier <= 0 {
		multiplier = 1
	}
	return &RatePolicy{
		tones:      normalized,
		multiplier: multiplier,
		jitter:     jitter,
		rng:        rng,
	}
}

// Tone 返回语气配置，未知语气按 neutral 处理。
func (p *RatePolicy) Tone(name string) Tone {
	if t, ok := p.tones[strings.ToLower(name)]; ok {
		return t
	}
	if t, ok := p.tones["neutral"]; ok {
		return t
	}
	return neutralTone
}

// Params 返回钳位到 [lo, hi] 的语速和语气表现力。
func (p *RatePolicy) Params(tone string, lo, hi float64) (rate, expressiveness float64) {
	t := p.Tone(tone)
	rate = t.Rate * p.multiplier * (1 + p.jitterFactor())
	return clamp(rate, lo, hi), t.Expressiveness
}

// jitterFactor 在 [-jitter, +jitter] 内均匀取值。
func (p *RatePolicy) jitterFactor() float64 {
	if p.jitter <= 0 {
		return 0
	}
	var u float64
	if p.rng != nil {
		p.mu.Lock()
		u = p.rng.Float64()
		p.mu.Unlock()
	} else {
		u = rand.Float64()
	}
	return (u*2 - 1) * p.jitter
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
