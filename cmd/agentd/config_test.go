package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aegis-platform/aegis/internal/config"
	"github.com/aegis-platform/aegis/internal/testutil/testlog"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentd.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadNodeConfigOnlyOverridesDefinedKeys(t *testing.T) {
	testlog.Start(t)
	path := writeConfigFile(t, `
node_id = "agent.gamma"
channel_capacity = 8
`)

	cfg, err := loadNodeConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := config.DefaultNodeConfig()
	if cfg.NodeID != "agent.gamma" {
		t.Fatalf("node_id not applied: %q", cfg.NodeID)
	}
	if cfg.ChannelCapacity != 8 {
		t.Fatalf("channel_capacity not applied: %d", cfg.ChannelCapacity)
	}
	if cfg.ListenAddr != def.ListenAddr || cfg.MaxFrameBytes != def.MaxFrameBytes {
		t.Fatalf("undefined keys must keep defaults: %+v", cfg)
	}
}

func TestLoadNodeConfigBlankNodeIDKeepsDefault(t *testing.T) {
	testlog.Start(t)
	path := writeConfigFile(t, `node_id = "   "`)

	cfg, err := loadNodeConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NodeID != config.DefaultNodeConfig().NodeID {
		t.Fatalf("blank node_id should keep default, got %q", cfg.NodeID)
	}
}

func TestLoadNodeConfigRejectsInvalid(t *testing.T) {
	testlog.Start(t)
	path := writeConfigFile(t, `listen_addr = "bogus"`)
	if _, err := loadNodeConfig(path); err == nil {
		t.Fatalf("expected validation failure")
	}
}
