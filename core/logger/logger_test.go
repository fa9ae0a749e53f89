package logger

import (
	"log/slog"
	"path/filepath"
	"testing"

	coreconfig "github.com/m3rciful/redistbot/core/config"
)

func TestSettingsFrom(t *testing.T) {
	s := settingsFrom(nil)
	if s.level != slog.LevelInfo || s.format != formatJSON || s.profile != "prod" || s.file != "" {
		t.Fatalf("nil config defaults = %+v", s)
	}

	cfg := &coreconfig.Config{}
	cfg.Logging.Profile = "Dev"
	cfg.Logging.Level = "warning"
	cfg.Logging.KeysOrder = " event , ,status"
	cfg.Logging.Dir = "logs"
	cfg.Logging.BotFile = "bot.log"
	s = settingsFrom(cfg)
	if s.level != slog.LevelWarn {
		t.Fatalf("level = %v", s.level)
	}
	if s.format != formatKV {
		t.Fatalf("dev profile should default to kv, got %s", s.format)
	}
	if len(s.order) != 2 || s.order[0] != "event" || s.order[1] != "status" {
		t.Fatalf("order = %v", s.order)
	}
	if s.file != filepath.Join("logs", "bot.log") {
		t.Fatalf("file = %s", s.file)
	}

	cfg.Logging.Format = "json"
	if got := settingsFrom(cfg).format; got != formatJSON {
		t.Fatalf("explicit json should win over profile, got %s", got)
	}
}
