package tts

import (
	"math/rand/v2"
	"testing"
)

func newTestPolicy(jitter float64) *RatePolicy {
	tones := map[string]Tone{
		"neutral":  {Rate: 1.0, Expressiveness: 1.0},
		"Agitated": {Rate: 1.2, Expressiveness: 1.3},
	}
	return NewRatePolicy(tones, 1.1, jitter, rand.New(rand.NewPCG(7, 7)))
}

func TestRatePolicy_NoJitter(t *testing.T) {
	p := newTestPolicy(0)

	rate, expr := p.Params("neutral", 0.5, 2.0)
	if diff := rate - 1.1; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("neutral rate = %v, want 1.1", rate)
	}
	if expr != 1.0 {
		t.Errorf("neutral expressiveness = %v, want 1.0", expr)
	}

	rate, expr = p.Params("agitated", 0.5, 2.0)
	if diff := rate - 1.32; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("agitated rate = %v, want 1.32", rate)
	}
	if expr != 1.3 {
		t.Errorf("agitated expressiveness = %v, want 1.3", expr)
	}
}

func TestRatePolicy_UnknownToneIsNeutral(t *testing.T) {
	p := newTestPolicy(0)
	a, _ := p.Params("whispering", 0.5, 2.0)
	b, _ := p.Params("neutral", 0.5, 2.0)
	if a != b {
		t.Errorf("unknown tone rate %v != neutral rate %v", a, b)
	}
}

func TestRatePolicy_JitterBounded(t *testing.T) {
	p := newTestPolicy(0.05)
	distinct := map[float64]bool{}
	for i := 0; i < 200; i++ {
		rate, _ := p.Params("neutral", 0.1, 10)
		if rate < 1.1*0.95-1e-9 || rate > 1.1*1.05+1e-9 {
			t.Fatalf("rate %v outside jitter bounds", rate)
		}
		distinct[rate] = true
	}
	if len(distinct) < 2 {
		t.Error("jitter should vary the rate between calls")
	}
}

func TestRatePolicy_Clamp(t *testing.T) {
	p := NewRatePolicy(map[string]Tone{"fast": {Rate: 5, Expressiveness: 1}, "slow": {Rate: 0.1, Expressiveness: 1}}, 1, 0.05, nil)
	if rate, _ := p.Params("fast", 0.6, 2.5); rate != 2.5 {
		t.Errorf("fast rate = %v, want clamped 2.5", rate)
	}
	if rate, _ := p.Params("slow", 0.6, 2.5); rate != 0.6 {
		t.Errorf("slow rate = %v, want clamped 0.6", rate)
	}
}

func TestRatePolicy_EmptyTable(t *testing.T) {
	p := NewRatePolicy(nil, 0, 0, nil)
	rate, expr := p.Params("anything", 0.5, 2)
	if rate != 1 || expr != 1 {
		t.Errorf("empty table should fall back to 1/1, got %v/%v", rate, expr)
	}
}
