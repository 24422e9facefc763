package broker

import "github.com/nimbusdex/matcher/logging"

const namedLogger = "broker"

// Config configures the broker and its optional external republish sink.
type Config struct {
	Level  logging.Level
	Socket SocketConfig
}

func NewDefaultConfig() Config {
	return Config{
		Level: logging.InfoLevel,
		Socket: SocketConfig{
			Enabled: false,
			Port:    3005,
		},
	}
}

// SocketConfig configures the mangos PUB socket notifications are
// republished over for out-of-process tooling (spec.md §4.10).
type SocketConfig struct {
	Enabled bool
	Port    int
}
