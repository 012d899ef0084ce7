package config

import (
	"os"
	"path/filepath"
	"testing"
)

//nolint:gocyclo
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `search:
  strategy: "tabu"
  workers: 4
  seed: 42
  budget_seconds: 30
weights:
  production: 12
  leftover: 6
operators:
  relocate_span: 3
tabu:
  tenure: 25
rolling:
  sub_days: 5
  lock_days: 2
mqtt:
  enabled: true
  client:
    broker: "tcp://localhost:1883"
    client_id: "hp"
    use_tls: false
  topic_prefix: "forest"
runlog:
  enabled: true
  path: "runs.db"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"strategy", cfg.Search.Strategy, "tabu"},
		{"workers", cfg.Search.Workers, 4},
		{"seed", cfg.Search.Seed, int64(42)},
		{"budget_seconds", cfg.Search.BudgetSeconds, 30},
		{"snapshot_every default", cfg.Search.SnapshotEvery, 100},
		{"weights.production", cfg.Weights.Production, 12.0},
		{"weights.leftover", cfg.Weights.Leftover, 6.0},
		{"operators.relocate_span", cfg.Operators.RelocateSpan, 3},
		{"tabu.tenure", cfg.Tabu.Tenure, 25},
		{"tabu.iterations default", cfg.Tabu.Iterations, 5000},
		{"rolling.sub_days", cfg.Rolling.SubDays, 5},
		{"mqtt.broker", cfg.MQTT.Client.Broker, "tcp://localhost:1883"},
		{"mqtt.topic_prefix", cfg.MQTT.TopicPrefix, "forest"},
		{"runlog.path", cfg.Runlog.Path, "runs.db"},
		{"logging.level default", cfg.Logging.Level, "info"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("search:\n  strategy: anneal\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HP_SEARCH__STRATEGY", "ils")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Search.Strategy != "ils" {
		t.Errorf("env override ignored: %s", cfg.Search.Strategy)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		data string
	}{
		{"bad strategy", "search:\n  strategy: gradient\n"},
		{"negative weight", "weights:\n  production: -1\n"},
		{"lock above sub", "rolling:\n  sub_days: 2\n  lock_days: 5\n"},
		{"mqtt without broker", "mqtt:\n  enabled: true\n"},
		{"bad log level", "logging:\n  level: verbose\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := filepath.Join(dir, c.name+".yaml")
			if err := os.WriteFile(path, []byte(c.data), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("invalid config accepted")
			}
		})
	}
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	if _, err := Load("config.toml"); err == nil {
		t.Fatalf("unsupported format accepted")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Search.Strategy != StrategyAnneal || cfg.Search.Workers != 1 {
		t.Fatalf("unexpected defaults: %+v", cfg.Search)
	}
	if cfg.Weights.Production == 0 {
		t.Fatalf("weights not defaulted")
	}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}
