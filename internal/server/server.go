// Package server 提供合成服务的 HTTP 接口。
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/iabetor/speechmix/internal/database"
	"github.com/iabetor/speechmix/internal/logger"
)

// maxBodyBytes 请求体上限。
const maxBodyBytes = 1 << 20

// Audio 合成结果。
type Audio interface {
	io.ReadCloser
	ContentType() string
	Size() int64
	RequestID() string
}

// Composer 文本到音频。
type Composer interface {
	ComposeText(ctx context.Context, voice, tone, text string) (Audio, error)
}

// ComposerFunc 把函数适配为 Composer。
type ComposerFunc func(ctx context.Context, voice, tone, text string) (Audio, error)

func (f ComposerFunc) ComposeText(ctx context.Context, voice, tone, text string) (Audio, error) {
	return f(ctx, voice, tone, text)
}

// History 合成记录查询，为 nil 时 /compositions 不可用。
type History interface {
	Recent(ctx context.Context, limit int) ([]database.Composition, error)
}

// SpeechRequest POST /speech 的请求体。
type SpeechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
	Tone  string `json:"tone"`
}

// compositionView GET /compositions 的单条记录。
type compositionView struct {
	ID           string    `json:"id"`
	Voice        string    `json:"voice"`
	Tone         string    `json:"tone"`
	Segments     int       `json:"segments"`
	Materialized int       `json:"materialized"`
	Dropped      int       `json:"dropped"`
	Fallback     bool      `json:"fallback"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Server HTTP 服务。
type Server struct {
	addr     string
	composer Composer
	history  History
	timeout  time.Duration
	server   *http.Server
}

// New 创建 HTTP 服务。timeout 为单次合成的超时时间，0 表示不限制。
func New(addr string, composer Composer, history History, timeout time.Duration) *Server {
	return &Server{addr: addr, composer: composer, history: history, timeout: timeout}
}

// Handler 返回路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /speech", s.handleSpeech)
	mux.HandleFunc("GET /compositions", s.handleCompositions)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	})
	return mux
}

// ListenAndServe 启动服务，ctx 取消后优雅关闭。
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Infof("[server] HTTP 服务已启动: %s", s.addr)

	go func() {
		<-ctx.Done()
		logger.Info("[server] 正在关闭 HTTP 服务")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("[server] 监听失败: %w", err)
	}
	return nil
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	// 空白文本照常交给合成器，由其输出兜底语音
	var req SpeechRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	audio, err := s.composer.ComposeText(ctx, req.Voice, req.Tone, req.Text)
	if err != nil {
		logger.Errorf("[server] 合成失败: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer audio.Close()

	w.Header().Set("Content-Type", audio.ContentType())
	w.Header().Set("Content-Length", strconv.FormatInt(audio.Size(), 10))
	w.Header().Set("X-Request-Id", audio.RequestID())
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, audio); err != nil {
		// 客户端断开，Close 会清理临时文件
		logger.Warnf("[server] 请求 %s 写出音频中断: %v", audio.RequestID(), err)
	}
}

func (s *Server) handleCompositions(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "composition log disabled", http.StatusNotFound)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, 500)
	}

	rows, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		logger.Errorf("[server] 查询合成记录失败: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]compositionView, 0, len(rows))
	for _, c := range rows {
		views = append(views, compositionView{
			ID:           c.ID,
			Voice:        c.Voice,
			Tone:         c.Tone,
			Segments:     c.Segments,
			Materialized: c.Materialized,
			Dropped:      c.Dropped,
			Fallback:     c.Fallback,
			Status:       c.Status,
			Error:        c.Error,
			DurationMs:   c.Duration.Milliseconds(),
			CreatedAt:    c.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(views)
}
