package tts

import (
	"context"
	"errors"
	"testing"

	"github.com/iabetor/speechmix/internal/config"
)

type fakeEngine struct {
	name  string
	audio *Audio
	err   error
	last  Request
}

func (f *fakeEngine) Name() string                { return f.name }
func (f *fakeEngine) RateRange() (lo, hi float64) { return 0.8, 1.2 }
func (f *fakeEngine) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	f.last = req
	return f.audio, f.err
}

func testVoices() map[string]Voice {
	return map[string]Voice{
		"default":  {Key: "default", Engine: "fake", Name: "v1"},
		"narrator": {Key: "narrator", Engine: "fake", Name: "v2"},
	}
}

func TestSynthesizer_ResolveAndClamp(t *testing.T) {
	eng := &fakeEngine{name: "fake", audio: &Audio{Data: []byte{1}, Format: FormatMP3}}
	policy := NewRatePolicy(map[string]Tone{"agitated": {Rate: 1.5, Expressiveness: 1.3}}, 1, 0, nil)
	s, err := NewSynthesizer(testVoices(), "default", []Engine{eng}, policy)
	if err != nil {
		t.Fatalf("NewSynthesizer failed: %v", err)
	}

	if _, err := s.Synthesize(context.Background(), "hi", "narrator", "agitated", "/run/ws"); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if eng.last.WorkDir != "/run/ws" {
		t.Errorf("work dir = %q, want /run/ws", eng.last.WorkDir)
	}
	if eng.last.Voice.Name != "v2" {
		t.Errorf("voice = %q, want v2", eng.last.Voice.Name)
	}
	if eng.last.Rate != 1.2 {
		t.Errorf("rate = %v, want clamped 1.2", eng.last.Rate)
	}
	if eng.last.Expressiveness != 1.3 {
		t.Errorf("expressiveness = %v, want 1.3", eng.last.Expressiveness)
	}

	if _, err := s.Synthesize(context.Background(), "hi", "unknown", "", ""); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if eng.last.Voice.Name != "v1" {
		t.Errorf("unknown voice should fall back to default, got %q", eng.last.Voice.Name)
	}
}

func TestSynthesizer_WrapsErrors(t *testing.T) {
	cause := errors.New("backend rejected")
	eng := &fakeEngine{name: "fake", err: cause}
	s, err := NewSynthesizer(testVoices(), "default", []Engine{eng}, nil)
	if err != nil {
		t.Fatalf("NewSynthesizer failed: %v", err)
	}

	_, err = s.Synthesize(context.Background(), "hi", "default", "", "")
	var se *SynthesisError
	if !errors.As(err, &se) {
		t.Fatalf("expected SynthesisError, got %v", err)
	}
	if se.Engine != "fake" || se.Voice != "default" || !errors.Is(err, cause) {
		t.Errorf("unexpected error: %+v", se)
	}
}

func TestSynthesizer_EmptyAudioIsError(t *testing.T) {
	eng := &fakeEngine{name: "fake", audio: &Audio{Format: FormatMP3}}
	s, _ := NewSynthesizer(testVoices(), "default", []Engine{eng}, nil)
	_, err := s.Synthesize(context.Background(), "hi", "default", "", "")
	var se *SynthesisError
	if !errors.As(err, &se) {
		t.Fatalf("expected SynthesisError for empty audio, got %v", err)
	}
}

func TestNewSynthesizer_MissingEngine(t *testing.T) {
	if _, err := NewSynthesizer(testVoices(), "default", nil, nil); err == nil {
		t.Fatal("expected error when a voice references a missing engine")
	}
	eng := &fakeEngine{name: "fake"}
	if _, err := NewSynthesizer(testVoices(), "ghost", []Engine{eng}, nil); err == nil {
		t.Fatal("expected error for unknown default voice")
	}
}

func TestNew_FromConfig(t *testing.T) {
	cfg, err := config.Parse([]byte(`
voices:
  default: local
  profiles:
    local:
      engine: piper
      model_path: /models/en.onnx
    web:
      engine: Edge
      voice: en-US-GuyNeural
`))
	if err != nil {
		t.Fatalf("config.Parse failed: %v", err)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if v := s.Resolve("web"); v.Engine != "edge" || v.Name != "en-US-GuyNeural" {
		t.Errorf("web voice = %+v", v)
	}
	if v := s.Resolve(""); v.Key != "local" || v.ModelPath != "/models/en.onnx" {
		t.Errorf("default voice = %+v", v)
	}
}

func TestNew_TencentWithoutCredentials(t *testing.T) {
	cfg, err := config.Parse([]byte(`
voices:
  default: cn
  profiles:
    cn:
      engine: tencent
      voice_type: 1001
`))
	if err != nil {
		t.Fatalf("config.Parse failed: %v", err)
	}
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for tencent engine without credentials")
	}
}
