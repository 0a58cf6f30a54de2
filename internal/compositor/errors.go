package compositor

import "fmt"

// CompositionError 合成在拼接阶段（或无法恢复的准备阶段）失败，整个请求失败。
type CompositionError struct {
	RequestID string
	Stage     string
	Err       error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("[compositor] 请求 %s %s失败: %v", e.RequestID, e.Stage, e.Err)
}

func (e *CompositionError) Unwrap() error { return e.Err }

// CleanupError 删除临时文件失败。只记录日志，不返回给调用方。
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("[compositor] 清理 %s 失败: %v", e.Path, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }
