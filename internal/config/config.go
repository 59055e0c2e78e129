package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// NodeConfig configures one agent node's communication layer and its admin
// plane. Frame-size and channel-capacity are configuration, not protocol:
// peers with differing ceilings still interoperate up to the smaller one.
type NodeConfig struct {
	NodeID          string   `toml:"node_id"`
	ListenAddr      string   `toml:"listen_addr"`
	AdminAddr       string   `toml:"admin_addr"`
	CorsOrigins     []string `toml:"cors_origins"`
	MaxFrameBytes   uint32   `toml:"max_frame_bytes"`
	ChannelCapacity int      `toml:"channel_capacity"`
}

func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		NodeID:          "agent-node",
		ListenAddr:      ":7400",
		AdminAddr:       ":7401",
		CorsOrigins:     []string{},
		MaxFrameBytes:   32 * 1024 * 1024,
		ChannelCapacity: 32,
	}
}

func LoadNodeConfig(path string) (NodeConfig, error) {
	cfg := DefaultNodeConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return NodeConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return NodeConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	cfg = cfg.withDefaults()
	if err := ValidateNodeConfig(cfg); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

func (c NodeConfig) withDefaults() NodeConfig {
	def := DefaultNodeConfig()
	if strings.TrimSpace(c.NodeID) == "" {
		c.NodeID = def.NodeID
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = def.ListenAddr
	}
	if strings.TrimSpace(c.AdminAddr) == "" {
		c.AdminAddr = def.AdminAddr
	}
	if c.MaxFrameBytes == 0 {
		c.MaxFrameBytes = def.MaxFrameBytes
	}
	if c.ChannelCapacity <= 0 {
		c.ChannelCapacity = def.ChannelCapacity
	}
	return c
}

func ValidateNodeConfig(cfg NodeConfig) error {
	if strings.TrimSpace(cfg.NodeID) == "" {
		return fmt.Errorf("node config missing node_id")
	}
	if err := validateAddr("listen_addr", cfg.ListenAddr); err != nil {
		return err
	}
	if err := validateAddr("admin_addr", cfg.AdminAddr); err != nil {
		return err
	}
	if cfg.ListenAddr == cfg.AdminAddr {
		return fmt.Errorf("listen_addr and admin_addr must differ")
	}
	return nil
}

func validateAddr(field, addr string) error {
	if strings.TrimSpace(addr) == "" {
		return fmt.Errorf("node config missing %s", field)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("node config %s invalid: %w", field, err)
	}
	return nil
}
