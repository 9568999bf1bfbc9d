package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatterLayout(t *testing.T) {
	entry := &logrus.Entry{
		Time:    time.Date(2026, 2, 6, 10, 30, 0, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "provider fell back",
		Data:    logrus.Fields{"provider": "gemini"},
	}

	out, err := (&Formatter{}).Format(entry)
	require.NoError(t, err)

	line := string(out)
	assert.True(t, strings.HasPrefix(line, "[2026-02-06 10:30:00] [WARN] []"), line)
	assert.Contains(t, line, "provider fell back")
	assert.Contains(t, line, "provider=gemini")
}

func TestInitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "aianalyzer.log")
	require.NoError(t, Init("debug", path))
	t.Cleanup(Discard)

	Log.Info("hello file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())
}

func TestInitUnknownLevel(t *testing.T) {
	require.NoError(t, Init("chatty", ""))
	t.Cleanup(Discard)
	assert.Equal(t, logrus.InfoLevel, Log.GetLevel())
}
