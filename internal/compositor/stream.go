package compositor

import (
	"io"
	"os"
	"sync"
	"time"
)

// ContentType 合成结果的 MIME 类型。
const ContentType = "audio/mpeg"

// Stream 合成结果的读取流。读到 EOF 或调用 Close 后删除本次请求的全部临时文件。
type Stream struct {
	f        *os.File
	ws       *workspace
	size     int64
	report   Report
	once     sync.Once
	closeErr error
}

func newStream(path string, ws *workspace, report Report) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Stream{f: f, ws: ws, size: info.Size(), report: report}, nil
}

func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.f.Read(p)
	if err == io.EOF {
		s.release()
	}
	return n, err
}

// Close 在未读完时也会释放临时文件。
func (s *Stream) Close() error {
	s.release()
	return s.closeErr
}

func (s *Stream) release() {
	s.once.Do(func() {
		s.closeErr = s.f.Close()
		s.ws.release()
	})
}

// ContentType 返回 "audio/mpeg"。
func (s *Stream) ContentType() string { return ContentType }

// Size 返回合成文件的字节数。
func (s *Stream) Size() int64 { return s.size }

// RequestID 返回本次合成的请求 ID。
func (s *Stream) RequestID() string { return s.report.ID }

// Duration 返回合成音频的时长，无法解析时为 0。
func (s *Stream) Duration() time.Duration { return s.report.Audio }

// Report 返回本次合成的统计。
func (s *Stream) Report() Report { return s.report }
