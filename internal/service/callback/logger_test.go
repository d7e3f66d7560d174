package callback

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLogger_DebugGate(t *testing.T) {
	info := &callbacks.RunInfo{Name: "openai", Type: "OpenAI", Component: components.ComponentOfChatModel}

	tests := []struct {
		name      string
		debug     bool
		wantStart bool
	}{
		{"debug enabled", true, true},
		{"debug disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := newLoggerWith(zerolog.New(&buf).Level(zerolog.DebugLevel), tt.debug)

			l.OnStart(context.Background(), info, "hello")
			l.OnError(context.Background(), info, errors.New("boom"))

			out := buf.String()
			assert.Equal(t, tt.wantStart, strings.Contains(out, "component start"))
			assert.Contains(t, out, "component error")
			assert.Contains(t, out, "boom")
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", truncate(nil))
	assert.Equal(t, "short", truncate("short"))

	long := strings.Repeat("x", 500)
	got := truncate(long)
	assert.Len(t, got, maxLoggedPayload+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}
