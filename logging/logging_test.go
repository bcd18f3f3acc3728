package logging

import "testing"

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	if err := InitLogger("deafening"); err == nil {
		t.Error("InitLogger(\"deafening\") = nil, want error")
	}
}

func TestInitLoggerAcceptsKnownLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		if err := InitLogger(level); err != nil {
			t.Errorf("InitLogger(%q) = %v, want nil", level, err)
		}
		if Logger() == nil {
			t.Errorf("Logger() is nil after InitLogger(%q)", level)
		}
	}
}

func TestLoggerFallsBackBeforeInit(t *testing.T) {
	globalLogger = nil
	if Logger() == nil {
		t.Error("Logger() is nil before InitLogger is ever called")
	}
}
