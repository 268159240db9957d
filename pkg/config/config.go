package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	API struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"api"`

	Relay struct {
		Address      string        `yaml:"address"`
		URL          string        `yaml:"url"` // broadcaster-side dial URL
		PingInterval time.Duration `yaml:"ping_interval"`
		PongTimeout  time.Duration `yaml:"pong_timeout"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
	} `yaml:"relay"`

	WebRTC struct {
		ICEServers []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
		PortRange struct {
			Min uint16 `yaml:"min"`
			Max uint16 `yaml:"max"`
		} `yaml:"port_range"`
		GatherTimeout time.Duration `yaml:"gather_timeout"`
	} `yaml:"webrtc"`

	Capture struct {
		FrameRate  int      `yaml:"frame_rate"`
		Width      int      `yaml:"width"`
		Height     int      `yaml:"height"`
		CameraHint int      `yaml:"camera_frame_rate"`
		Devices    []Device `yaml:"devices"`
	} `yaml:"capture"`

	Quality struct {
		MaxBitrateKbps  int     `yaml:"max_bitrate_kbps"`
		MaxFrameRate    int     `yaml:"max_frame_rate"`
		ScaleDown       float64 `yaml:"scale_down"`
		PreferFrameRate bool    `yaml:"prefer_frame_rate"`
	} `yaml:"quality"`

	Session struct {
		ThumbnailSettleDelay time.Duration `yaml:"thumbnail_settle_delay"`
		ThumbnailInterval    time.Duration `yaml:"thumbnail_interval"`
		SnapshotTimeout      time.Duration `yaml:"snapshot_timeout"`
	} `yaml:"session"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		Enabled        bool          `yaml:"enabled"`
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
	} `yaml:"auth"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled        bool   `yaml:"enabled"`
		JaegerEndpoint string `yaml:"jaeger_endpoint"`
		ServiceName    string `yaml:"service_name"`
	} `yaml:"tracing"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
		RelayConnsPerMin  int     `yaml:"relay_connections_per_minute"`
	} `yaml:"rate_limiting"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Device describes a configured capture device (the device enumeration UI is
// external; the core only needs stable selectors).
type Device struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"` // camera | microphone
	Name string `yaml:"name"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.API.Address == "" {
		return fmt.Errorf("api.address must not be empty")
	}
	if c.API.ReadTimeout <= 0 || c.API.WriteTimeout <= 0 {
		return fmt.Errorf("api read/write timeouts must be > 0")
	}
	if c.Relay.Address == "" {
		return fmt.Errorf("relay.address must not be empty")
	}
	if c.Relay.URL == "" {
		return fmt.Errorf("relay.url must not be empty")
	}
	if c.Relay.PingInterval <= 0 || c.Relay.PongTimeout <= 0 {
		return fmt.Errorf("relay ping/pong intervals must be > 0")
	}

	if c.WebRTC.PortRange.Min > 0 || c.WebRTC.PortRange.Max > 0 {
		if c.WebRTC.PortRange.Min == 0 || c.WebRTC.PortRange.Max == 0 {
			return fmt.Errorf("webrtc.port_range.min and max must both be set when one is set")
		}
		if c.WebRTC.PortRange.Min >= c.WebRTC.PortRange.Max {
			return fmt.Errorf("webrtc.port_range.min must be < max")
		}
	}
	if c.WebRTC.GatherTimeout <= 0 {
		return fmt.Errorf("webrtc.gather_timeout must be > 0")
	}

	if c.Capture.FrameRate <= 0 {
		return fmt.Errorf("capture.frame_rate must be > 0")
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		return fmt.Errorf("capture.width and height must be > 0")
	}
	for _, d := range c.Capture.Devices {
		if d.ID == "" {
			return fmt.Errorf("capture.devices entries need an id")
		}
		if d.Kind != "camera" && d.Kind != "microphone" {
			return fmt.Errorf("capture device %s: kind must be camera or microphone", d.ID)
		}
	}

	if c.Quality.MaxBitrateKbps < 0 || c.Quality.MaxFrameRate < 0 {
		return fmt.Errorf("quality ceilings must be >= 0")
	}
	if c.Quality.ScaleDown < 0 || c.Quality.ScaleDown > 1 {
		return fmt.Errorf("quality.scale_down must be in [0, 1]")
	}

	if c.Session.ThumbnailSettleDelay <= 0 || c.Session.ThumbnailInterval <= 0 {
		return fmt.Errorf("session thumbnail timings must be > 0")
	}
	if c.Session.SnapshotTimeout <= 0 {
		return fmt.Errorf("session.snapshot_timeout must be > 0")
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret must not be empty when auth.enabled=true")
		}
		if c.Auth.AccessTokenTTL <= 0 {
			return fmt.Errorf("auth.access_token_ttl must be > 0 when auth.enabled=true")
		}
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort <= 0 {
		return fmt.Errorf("monitoring.prometheus_port must be > 0 when prometheus_enabled=true")
	}
	if c.Tracing.Enabled && c.Tracing.JaegerEndpoint == "" {
		return fmt.Errorf("tracing.jaeger_endpoint must not be empty when tracing.enabled=true")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.RequestsPerSecond <= 0 || c.RateLimiting.Burst <= 0 {
			return fmt.Errorf("rate_limiting requests_per_second and burst must be > 0 when enabled")
		}
		if c.RateLimiting.RelayConnsPerMin <= 0 {
			return fmt.Errorf("rate_limiting.relay_connections_per_minute must be > 0 when enabled")
		}
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	return nil
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides. A missing file is not an error: defaults apply.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.API.Address = ":8080"
	cfg.API.ReadTimeout = 30 * time.Second
	cfg.API.WriteTimeout = 30 * time.Second
	cfg.API.ShutdownTimeout = 15 * time.Second

	cfg.Relay.Address = ":8081"
	cfg.Relay.URL = "ws://localhost:8081/ws"
	cfg.Relay.PingInterval = 30 * time.Second
	cfg.Relay.PongTimeout = 60 * time.Second
	cfg.Relay.DialTimeout = 10 * time.Second

	cfg.WebRTC.GatherTimeout = 5 * time.Second

	cfg.Capture.FrameRate = 60
	cfg.Capture.Width = 1280
	cfg.Capture.Height = 720
	cfg.Capture.CameraHint = 30

	cfg.Quality.MaxBitrateKbps = 3000
	cfg.Quality.MaxFrameRate = 60
	cfg.Quality.ScaleDown = 1.0
	cfg.Quality.PreferFrameRate = true

	cfg.Session.ThumbnailSettleDelay = 3 * time.Second
	cfg.Session.ThumbnailInterval = 30 * time.Second
	cfg.Session.SnapshotTimeout = 2 * time.Second

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.PoolSize = 10

	cfg.Auth.Enabled = false
	cfg.Auth.AccessTokenTTL = 15 * time.Minute

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.PrometheusPort = 9090

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "castdeck"

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 50
	cfg.RateLimiting.Burst = 100
	cfg.RateLimiting.RelayConnsPerMin = 60

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("CASTDECK_API_ADDRESS"); addr != "" {
		c.API.Address = addr
	}
	if addr := os.Getenv("CASTDECK_RELAY_ADDRESS"); addr != "" {
		c.Relay.Address = addr
	}
	if url := os.Getenv("CASTDECK_RELAY_URL"); url != "" {
		c.Relay.URL = url
	}
	if addr := os.Getenv("CASTDECK_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
	if level := os.Getenv("CASTDECK_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("CASTDECK_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
}
