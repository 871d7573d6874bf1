package realtime

import "time"

const (
	// maxFrameBytes caps one inbound frame; a max-length chat message plus envelope fits easily.
	maxFrameBytes = 64 << 10

	defaultSendQueue = 256
	minSendQueue     = 32

	defaultWriteTimeout      = 5 * time.Second
	defaultReadIdle          = 2 * time.Minute
	defaultHeartbeatInterval = 25 * time.Second
	defaultHeartbeatTimeout  = 5 * time.Second
	defaultRateEvents        = 120
	defaultRateWindow        = 10 * time.Second
)

// Config holds the gateway policy. Fields carry env tags so app.Config can embed it
// under the RPMS_WS_ prefix.
type Config struct {
	// DevInsecure disables websocket.Accept's origin verification. Dev only.
	DevInsecure bool `env:"DEV_INSECURE" envDefault:"false"`

	OriginRequired bool     `env:"ORIGIN_REQUIRED" envDefault:"true"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost,http://127.0.0.1" envSeparator:","`

	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"5s"`
	ReadIdleTimeout time.Duration `env:"READ_IDLE_TIMEOUT" envDefault:"2m"`
	SendQueue       int           `env:"SEND_QUEUE" envDefault:"256"`

	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"25s"`
	HeartbeatTimeout  time.Duration `env:"HEARTBEAT_TIMEOUT" envDefault:"5s"`

	RateEvents int           `env:"RATE_EVENTS" envDefault:"120"`
	RateWindow time.Duration `env:"RATE_WINDOW" envDefault:"10s"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		OriginRequired:    true,
		AllowedOrigins:    []string{"http://localhost", "http://127.0.0.1"},
		WriteTimeout:      defaultWriteTimeout,
		ReadIdleTimeout:   defaultReadIdle,
		SendQueue:         defaultSendQueue,
		HeartbeatInterval: defaultHeartbeatInterval,
		HeartbeatTimeout:  defaultHeartbeatTimeout,
		RateEvents:        defaultRateEvents,
		RateWindow:        defaultRateWindow,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ReadIdleTimeout <= 0 {
		c.ReadIdleTimeout = d.ReadIdleTimeout
	}
	if c.SendQueue < minSendQueue {
		c.SendQueue = minSendQueue
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = d.HeartbeatTimeout
	}
	if c.RateEvents <= 0 {
		c.RateEvents = d.RateEvents
	}
	if c.RateWindow <= 0 {
		c.RateWindow = d.RateWindow
	}
	return c
}
