// Package assets 把音效标记解析为本地预录音频文件。
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrAssetMissing 标记没有对应音效，或音效文件不存在。
var ErrAssetMissing = errors.New("音效文件不存在")

// Resolver 标记到音效文件的只读映射。
type Resolver struct {
	dir    string
	sounds map[string]string
}

// NewResolver 创建解析器。sounds 为标记到文件名的映射，相对路径基于 dir。
func NewResolver(dir string, sounds map[string]string) *Resolver {
	copied := make(map[string]string, len(sounds))
	for k, v := range sounds {
		copied[k] = v
	}
	return &Resolver{dir: dir, sounds: copied}
}

// Markers 返回所有已配置的标记，按字典序排列。
func (r *Resolver) Markers() []string {
	markers := make([]string, 0, len(r.sounds))
	for k := range r.sounds {
		markers = append(markers, k)
	}
	sort.Strings(markers)
	return markers
}

// Resolve 返回标记对应的音效文件路径。文件缺失或为空时返回包装了 ErrAssetMissing 的错误。
func (r *Resolver) Resolve(marker string) (string, error) {
	name, ok := r.sounds[marker]
	if !ok {
		return "", fmt.Errorf("[assets] 未配置的标记 %q: %w", marker, ErrAssetMissing)
	}

	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.dir, name)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("[assets] 标记 %q -> %s: %w", marker, path, ErrAssetMissing)
	}
	if info.IsDir() || info.Size() == 0 {
		return "", fmt.Errorf("[assets] 标记 %q -> %s 不是有效文件: %w", marker, path, ErrAssetMissing)
	}
	return path, nil
}
