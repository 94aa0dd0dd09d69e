package config

import "time"

const (
	Debug        = false
	BuildVersion = "v0.3.1-BUILD_VERSION"

	EditorVersion   = 30100
	ProtocolVersion = 5

	DefaultHost         = "localhost"
	DefaultPort         = 31313
	DefaultName         = "mapper"
	DefaultColor        = "#00ff00ff"
	DefaultMaxFrameSize = 1024 * 1024
	DefaultLinger       = 5 * time.Second

	TransportTCP  = "tcp"
	TransportQuic = "quic"
)
