package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml"
)

type Custom struct {
	Client struct {
		Name            string `toml:"name"`
		Password        string `toml:"password"`
		EditorVersion   uint32 `toml:"editor-version"`
		ProtocolVersion uint32 `toml:"protocol-version"`
		MapVersion      uint32 `toml:"map-version"`
		Color           string `toml:"color"`
	} `toml:"client"`
	Network struct {
		Host           string `toml:"host"`
		Port           int    `toml:"port"`
		Transport      string `toml:"transport"`
		MaxFrameSize   uint32 `toml:"max-frame-size"`
		Linger         int    `toml:"linger"`
		DelayedWrite   bool   `toml:"delayed-write"`
		ConnectTimeout int    `toml:"connect-timeout"`
	} `toml:"network"`
	RPC struct {
		Port int `toml:"port"`
	} `toml:"rpc"`
	Recorder struct {
		Dir string `toml:"dir"`
	} `toml:"recorder"`
}

// Initialize reads the TOML file, an empty path returns the defaults.
func Initialize(file string) (*Custom, error) {
	var config Custom
	if file != "" {
		f, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		err = toml.Unmarshal(f, &config)
		if err != nil {
			return nil, err
		}
	}
	config.applyDefaults()
	return &config, config.Validate()
}

func (c *Custom) applyDefaults() {
	if c.Client.Name == "" {
		c.Client.Name = DefaultName
	}
	if c.Client.EditorVersion == 0 {
		c.Client.EditorVersion = EditorVersion
	}
	if c.Client.ProtocolVersion == 0 {
		c.Client.ProtocolVersion = ProtocolVersion
	}
	if c.Client.Color == "" {
		c.Client.Color = DefaultColor
	}
	if c.Network.Host == "" {
		c.Network.Host = DefaultHost
	}
	if c.Network.Port == 0 {
		c.Network.Port = DefaultPort
	}
	if c.Network.Transport == "" {
		c.Network.Transport = TransportTCP
	}
	if c.Network.MaxFrameSize == 0 {
		c.Network.MaxFrameSize = DefaultMaxFrameSize
	}
	if c.Network.Linger == 0 {
		c.Network.Linger = int(DefaultLinger / time.Second)
	}
}

func (c *Custom) Validate() error {
	if c.Network.Port < 1 || c.Network.Port > 65535 {
		return fmt.Errorf("invalid network port %d", c.Network.Port)
	}
	switch c.Network.Transport {
	case TransportTCP, TransportQuic:
	default:
		return fmt.Errorf("invalid network transport %s", c.Network.Transport)
	}
	if c.Network.ConnectTimeout < 0 {
		return fmt.Errorf("invalid connect timeout %d", c.Network.ConnectTimeout)
	}
	return nil
}

func (c *Custom) LingerDuration() time.Duration {
	return time.Duration(c.Network.Linger) * time.Second
}

func (c *Custom) ConnectTimeoutDuration() time.Duration {
	return time.Duration(c.Network.ConnectTimeout) * time.Second
}
