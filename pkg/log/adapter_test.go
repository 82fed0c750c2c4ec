package log

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerLogger_LevelMapping(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)
	adapter := NewBadgerLogger(logrus.NewEntry(logger))

	tests := []struct {
		name  string
		log   func()
		level logrus.Level
		msg   string
	}{
		{"error", func() { adapter.Errorf("error %s", "x") }, logrus.ErrorLevel, "error x"},
		{"warning", func() { adapter.Warningf("warning %d", 42) }, logrus.WarnLevel, "warning 42"},
		{"info demoted", func() { adapter.Infof("compaction %v", true) }, logrus.DebugLevel, "compaction true"},
		{"debug demoted", func() { adapter.Debugf("vlog") }, logrus.TraceLevel, "vlog"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook.Reset()
			tt.log()
			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, tt.level, entry.Level)
			assert.Equal(t, tt.msg, entry.Message)
		})
	}
}

func TestBadgerLogger_InfoHiddenAtInfoLevel(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)
	adapter := NewBadgerLogger(logrus.NewEntry(logger))

	adapter.Infof("routine chatter")
	assert.Empty(t, hook.AllEntries())
}
