package tts

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestEdgeRate(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "+0%"},
		{1.15, "+15%"},
		{0.92, "-8%"},
		{2.0, "+100%"},
		{0, "+0%"},
	}
	for _, tt := range tests {
		if got := edgeRate(tt.rate); got != tt.want {
			t.Errorf("edgeRate(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestTencentSpeed(t *testing.T) {
	tests := []struct {
		rate float64
		want float64
	}{
		{0.5, -2},
		{0.6, -2},
		{0.7, -1.5},
		{1.0, 0},
		{1.1, 0.5},
		{1.5, 2},
		{2.0, 4},
		{3.0, 6},
	}
	for _, tt := range tests {
		if got := tencentSpeed(tt.rate); got != tt.want {
			t.Errorf("tencentSpeed(%v) = %v, want %v", tt.rate, got, tt.want)
		}
	}
}

func TestTencentEmotionIntensity(t *testing.T) {
	if got := tencentEmotionIntensity(1.0); got != 100 {
		t.Errorf("intensity(1.0) = %d, want 100", got)
	}
	if got := tencentEmotionIntensity(0.1); got != 50 {
		t.Errorf("intensity(0.1) = %d, want 50", got)
	}
	if got := tencentEmotionIntensity(3); got != 200 {
		t.Errorf("intensity(3) = %d, want 200", got)
	}
}

func TestNewTencentEngine_RequiresCredentials(t *testing.T) {
	if _, err := NewTencentEngine(TencentConfig{}); err == nil {
		t.Fatal("expected error without credentials")
	}
}

func TestPiperArgs(t *testing.T) {
	p := NewPiperEngine("", 0)
	args := p.args(Request{Voice: Voice{ModelPath: "/m.onnx"}, Rate: 1.25})
	want := []string{"--model", "/m.onnx", "--output-raw", "--length_scale", "0.800"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

// fakeCommand 写一个 shell 脚本代替外部合成命令。
func fakeCommand(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("write fake %s: %v", name, err)
	}
	return path
}

func TestPiperEngine_Synthesize(t *testing.T) {
	bin := fakeCommand(t, "piper", `cat > /dev/null; printf 'abcd'`)
	p := NewPiperEngine(bin, 16000)

	audio, err := p.Synthesize(context.Background(), Request{Text: "hello", Voice: Voice{ModelPath: "m"}, Rate: 1})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(audio.Data) != "abcd" || audio.Format != FormatPCM16 || audio.SampleRate != 16000 || audio.Channels != 1 {
		t.Errorf("unexpected audio: %+v", audio)
	}
}

func TestPiperEngine_EmptyOutput(t *testing.T) {
	bin := fakeCommand(t, "piper", `cat > /dev/null`)
	p := NewPiperEngine(bin, 0)
	if _, err := p.Synthesize(context.Background(), Request{Text: "hello", Rate: 1}); err == nil {
		t.Fatal("expected error for empty output")
	}
}

func TestPiperEngine_Failure(t *testing.T) {
	bin := fakeCommand(t, "piper", `echo boom >&2; exit 3`)
	p := NewPiperEngine(bin, 0)
	if _, err := p.Synthesize(context.Background(), Request{Text: "hello", Rate: 1}); err == nil {
		t.Fatal("expected error for failing process")
	}
}

func TestSayEngine_TempFilesInWorkDir(t *testing.T) {
	record := filepath.Join(t.TempDir(), "aiff-path")
	say := fakeCommand(t, "say", `printf 'FORM' > "$2"; echo "$2" > `+record)
	convert := fakeCommand(t, "afconvert", `head -c 100 /dev/zero > "$6"`)
	s := &SayEngine{say: say, convert: convert}

	workDir := t.TempDir()
	audio, err := s.Synthesize(context.Background(), Request{Text: "hello", Rate: 1, WorkDir: workDir})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if audio.Format != FormatWAV || len(audio.Data) != 100 {
		t.Errorf("unexpected audio: format=%s len=%d", audio.Format, len(audio.Data))
	}

	got, err := os.ReadFile(record)
	if err != nil {
		t.Fatalf("read recorded path: %v", err)
	}
	if dir := filepath.Dir(strings.TrimSpace(string(got))); dir != workDir {
		t.Errorf("aiff written to %q, want under %q", dir, workDir)
	}
	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("intermediate files left in work dir: %v", entries)
	}
}

func TestSayEngine_SilentOutput(t *testing.T) {
	say := fakeCommand(t, "say", `printf 'FORM' > "$2"`)
	convert := fakeCommand(t, "afconvert", `head -c 44 /dev/zero > "$6"`)
	s := &SayEngine{say: say, convert: convert}

	if _, err := s.Synthesize(context.Background(), Request{Text: "hello", Rate: 1, WorkDir: t.TempDir()}); err == nil {
		t.Fatal("expected error for header-only WAV")
	}
}
