package audio

import (
	"math"
	"testing"
	"time"
)

func TestBytesToInt16_LittleEndian(t *testing.T) {
	// 0x0102 in little-endian is {0x02, 0x01}
	out := BytesToInt16([]byte{0x02, 0x01})
	if len(out) != 1 || out[0] != 0x0102 {
		t.Fatalf("expected 258 (0x0102), got %v", out)
	}
}

func TestBytesToInt16_OddLength(t *testing.T) {
	out := BytesToInt16([]byte{0x02, 0x01, 0xff})
	if len(out) != 1 {
		t.Fatalf("trailing byte should be dropped, got %d samples", len(out))
	}
}

func TestBytesToInt16_Extremes(t *testing.T) {
	out := BytesToInt16([]byte{0xff, 0x7f, 0x00, 0x80})
	if out[0] != math.MaxInt16 || out[1] != math.MinInt16 {
		t.Fatalf("expected [MaxInt16 MinInt16], got %v", out)
	}
}

func TestPCM16ToInts_TrimsPartialFrame(t *testing.T) {
	// 3 个样本、双声道：最后一帧不完整
	out := PCM16ToInts([]byte{1, 0, 2, 0, 3, 0}, 2)
	if len(out) != 2 || out[0] != 1 || out[1] != 2 {
		t.Fatalf("unexpected samples: %v", out)
	}
}

func TestFramesFor(t *testing.T) {
	tests := []struct {
		d    time.Duration
		rate int
		want int
	}{
		{500 * time.Millisecond, 48000, 24000},
		{400 * time.Millisecond, 48000, 19200},
		{time.Second, 22050, 22050},
		{0, 48000, 0},
	}
	for _, tt := range tests {
		if got := FramesFor(tt.d, tt.rate); got != tt.want {
			t.Errorf("FramesFor(%v, %d) = %d, want %d", tt.d, tt.rate, got, tt.want)
		}
	}
}

func TestDurationOf(t *testing.T) {
	if got := DurationOf(24000, 48000); got != 500*time.Millisecond {
		t.Errorf("DurationOf(24000, 48000) = %v", got)
	}
	if got := DurationOf(100, 0); got != 0 {
		t.Errorf("zero sample rate should give 0, got %v", got)
	}
}
