package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func TestZerologWriter_Levels(t *testing.T) {
	tests := []struct {
		name      string
		format    string
		args      []interface{}
		wantLevel string
	}{
		{"plain sql", "%s\n[%.3fms] [rows:%v] %s", []interface{}{"repo.go:12", 1.2, 1, "SELECT 1"}, "debug"},
		{"slow sql", "%s SLOW SQL >= %v", []interface{}{"repo.go:12", "200ms"}, "warn"},
		{"error", "%s %s", []interface{}{"repo.go:12", "ERROR: relation missing"}, "warn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := zerologWriter{logger: zerolog.New(&buf).Level(zerolog.DebugLevel)}

			w.Printf(tt.format, tt.args...)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.NotEmpty(t, entry["message"])
		})
	}
}

func TestNewGormLogger_RoutesToZerolog(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	gl := newGormLogger(logger, false)
	gl.Error(context.Background(), "insert failed: %v", errors.New("duplicate key"))
	gl.Info(context.Background(), "hidden below warn")

	out := buf.String()
	assert.Contains(t, out, "duplicate key")
	assert.Contains(t, out, `"source":"gorm"`)
	assert.NotContains(t, out, "hidden below warn")
}

func TestNewGormLogger_DebugTracesSQL(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	gl := newGormLogger(logger, true).LogMode(gormlogger.Info)
	gl.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT * FROM agents", 2
	}, nil)

	assert.Contains(t, buf.String(), "SELECT * FROM agents")
}
