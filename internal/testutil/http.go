package testutil

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// Request 对 handler 发起请求并返回记录器
func Request(h http.Handler, method, target string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// JSONRequest 发送 JSON 请求体
func JSONRequest(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	return Request(h, method, target, strings.NewReader(body), map[string]string{"Content-Type": "application/json"})
}

// SSEFrames 解析响应体中的 SSE data 帧
func SSEFrames(t *testing.T, body string) []map[string]any {
	t.Helper()
	var frames []map[string]any
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var frame map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &frame); err != nil {
			t.Fatalf("testutil: bad sse frame %q: %v", line, err)
		}
		frames = append(frames, frame)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("testutil: read sse body: %v", err)
	}
	return frames
}

// FrameTypes 帧类型序列
func FrameTypes(frames []map[string]any) []string {
	types := make([]string, 0, len(frames))
	for _, f := range frames {
		s, _ := f["type"].(string)
		types = append(types, s)
	}
	return types
}
