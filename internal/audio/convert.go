package audio

import "time"

// BytesToInt16 将小端字节切片转换为 int16 样本，末尾不完整的字节被丢弃。
func BytesToInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(b[2*i]) | int16(b[2*i+1])<<8
	}
	return out
}

// PCM16ToInts 将 signed 16-bit LE PCM 字节转换为 go-audio 使用的 []int 样本，
// 并截掉不完整的尾部帧。
func PCM16ToInts(b []byte, channels int) []int {
	samples := BytesToInt16(b)
	if channels > 1 {
		samples = samples[:len(samples)/channels*channels]
	}
	out := make([]int, len(samples))
	for i, s := range samples {
		out[i] = int(s)
	}
	return out
}

// FramesFor 返回指定时长在给定采样率下的帧数（向下取整）。
func FramesFor(d time.Duration, sampleRate int) int {
	return int(int64(d) * int64(sampleRate) / int64(time.Second))
}

// DurationOf 返回帧数在给定采样率下对应的时长。
func DurationOf(frames int64, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(frames * int64(time.Second) / int64(sampleRate))
}
