package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SSEWriter 封装 Server-Sent Events 的写出与刷新
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter 设置响应头并返回写出器；ResponseWriter 不支持刷新时返回错误
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}
	SetupSSEHeaders(w)
	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Send 发送一个 data-only 的事件
func (s *SSEWriter) Send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal sse payload: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write sse payload: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// SendEvent 发送带事件类型的SSE消息
func (s *SSEWriter) SendEvent(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal sse event data: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("failed to write sse event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// SetupSSEHeaders 设置Server-Sent Events响应头
func SetupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}
