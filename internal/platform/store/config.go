package store

import (
	"time"

	"hitclust/internal/core/version"
	"hitclust/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG   PGConfig
	Lite LiteConfig
	CH   CHConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// boot knobs; zero picks the defaults in openers.go
	ConnectRetries int
	PingTimeout    time.Duration
}

// LiteConfig configures the local sqlite file
type LiteConfig struct {
	Enabled bool
	Path    string
	// BusyTimeout is how long writers wait on a locked database
	BusyTimeout time.Duration
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled bool
	URL     string
	// Role and Tag are reported to the server as client info
	Role string
	Tag  string
}

// FromEnv reads every backend under its SERVICE_* prefix; a backend is enabled
// when its DBURL (or PATH for sqlite) is set
func FromEnv(root config.Conf, role string) Config {
	pg := root.Prefix("SERVICE_PGSQL_")
	lite := root.Prefix("SERVICE_SQLITE_")
	ch := root.Prefix("SERVICE_CLICKHOUSE_")
	return Config{
		AppName: "hitclust-" + role,
		PG: PGConfig{
			Enabled:        pg.Has("DBURL"),
			URL:            pg.MayString("DBURL", ""),
			MaxConns:       int32(pg.MayIntIn("MAX_CONNS", 4, 1, 256)),
			SlowQueryMs:    pg.MayInt("SLOW_MS", 500),
			LogSQL:         pg.MayBool("LOG_SQL", false),
			ConnectRetries: pg.MayIntIn("CONNECT_RETRIES", 0, 0, 100),
			PingTimeout:    pg.MayDuration("PING_TIMEOUT", 0),
		},
		Lite: LiteConfig{
			Enabled:     lite.Has("PATH"),
			Path:        lite.MayString("PATH", ""),
			BusyTimeout: lite.MayDuration("BUSY_TIMEOUT", 5*time.Second),
		},
		CH: CHConfig{
			Enabled: ch.Has("DBURL"),
			URL:     ch.MayString("DBURL", ""),
			Role:    role,
			Tag:     version.Info().Version,
		},
	}
}

// Any reports whether at least one backend is enabled
func (c Config) Any() bool { return c.PG.Enabled || c.Lite.Enabled || c.CH.Enabled }
