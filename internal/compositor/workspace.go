package compositor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// workspace 单次请求独占的临时目录。
// 创建的每个文件都先登记再写入，release 只执行一次并删除全部登记文件和目录本身。
type workspace struct {
	dir string
	log *zap.SugaredLogger

	// remove 删除单个路径，测试中替换以模拟清理失败
	remove func(string) error

	mu    sync.Mutex
	files []string

	once sync.Once
}

func newWorkspace(base, requestID string, log *zap.SugaredLogger) (*workspace, error) {
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("创建临时根目录失败: %w", err)
	}
	dir, err := os.MkdirTemp(base, "speechmix-"+requestID+"-")
	if err != nil {
		return nil, fmt.Errorf("创建临时目录失败: %w", err)
	}
	return &workspace{dir: dir, log: log, remove: os.Remove}, nil
}

// path 登记并返回工作目录下的文件路径。
func (w *workspace) path(name string) string {
	p := filepath.Join(w.dir, name)
	w.mu.Lock()
	w.files = append(w.files, p)
	w.mu.Unlock()
	return p
}

// discard 提前删除文件，失败只记录。release 时会再次尝试。
func (w *workspace) discard(paths ...string) {
	for _, p := range paths {
		w.removeLogged(p)
	}
}

// release 删除所有登记的文件，然后删除目录。可重复调用。
func (w *workspace) release() {
	w.once.Do(func() {
		w.mu.Lock()
		files := w.files
		w.files = nil
		w.mu.Unlock()

		for _, p := range files {
			w.removeLogged(p)
		}
		// 目录里可能还有转码器留下的未登记文件
		if err := os.RemoveAll(w.dir); err != nil {
			w.log.Warn((&CleanupError{Path: w.dir, Err: err}).Error())
		}
		w.log.Debugf("[compositor] 已清理临时目录 %s", w.dir)
	})
}

func (w *workspace) removeLogged(p string) {
	if err := w.remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.log.Warn((&CleanupError{Path: p, Err: err}).Error())
	}
}
