package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"thetalkingdrone/internal/domain"
	"thetalkingdrone/internal/environment"
	"thetalkingdrone/internal/flight"
)

type Config struct {
	JWTSecret      string
	JWTTTL         time.Duration
	HTTPAddr       string
	GRPCAddr       string
	ThriftAddr     string
	LogLevel       string
	LogPretty      bool
	DatabaseURL    string
	SQLitePath     string
	MigrateOnStart bool

	NATSURL           string
	NATSSubjectPrefix string
	NATSEmbedded      bool
	NATSEmbeddedPort  int
	OutboxEnabled     bool
	OutboxInterval    time.Duration
	OutboxBatch       int
	TelemetryInterval time.Duration

	Environment   environment.Config
	Flight        flight.Options
	ClockInterval time.Duration
	DefaultModel  domain.DroneModel

	LinkEnabled bool
	LinkTimeout time.Duration
}

// LoadDotEnv seeds the process environment from a .env file if one exists. Variables already
// set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func Load() (Config, error) {
	cfg := load()
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}
	if err := domain.ValidateModel(cfg.DefaultModel); err != nil {
		return cfg, fmt.Errorf("DEFAULT_DRONE_*: %w", err)
	}
	return cfg, nil
}

// LoadWorker loads the outbox relay configuration, which needs a database but no JWT secret.
func LoadWorker() (Config, error) {
	cfg := load()
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func load() Config {
	var cfg Config
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.JWTTTL = getDuration("JWT_TTL", time.Hour)
	cfg.HTTPAddr = getString("HTTP_ADDR", ":8080")
	cfg.GRPCAddr = getString("GRPC_ADDR", ":9090")
	cfg.ThriftAddr = getString("THRIFT_ADDR", ":9091")
	cfg.LogLevel = getString("LOG_LEVEL", "info")
	cfg.LogPretty = getBool("LOG_PRETTY", false)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.SQLitePath = os.Getenv("SQLITE_PATH")
	cfg.MigrateOnStart = getBool("MIGRATE_ON_START", true)

	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubjectPrefix = getString("NATS_SUBJECT_PREFIX", "drone")
	cfg.NATSEmbedded = getBool("NATS_EMBEDDED", false)
	cfg.NATSEmbeddedPort = getInt("NATS_EMBEDDED_PORT", 4222)
	cfg.OutboxEnabled = getBool("OUTBOX_ENABLED", false)
	cfg.OutboxInterval = getDuration("OUTBOX_POLL_INTERVAL", time.Second)
	cfg.OutboxBatch = getInt("OUTBOX_BATCH_SIZE", 50)
	cfg.TelemetryInterval = getDuration("TELEMETRY_INTERVAL", 0)

	env := environment.DefaultConfig()
	env.Boundaries = domain.Boundaries{
		MaxX: getFloat("ENV_MAX_X", env.Boundaries.MaxX),
		MaxY: getFloat("ENV_MAX_Y", env.Boundaries.MaxY),
		MaxZ: getFloat("ENV_MAX_Z", env.Boundaries.MaxZ),
	}
	env.CheckObstacles = getBool("ENV_CHECK_OBSTACLES", env.CheckObstacles)
	if !getBool("ENV_SAMPLE_OBSTACLES", true) {
		env.Obstacles = nil
	}
	cfg.Environment = env

	opts := flight.DefaultOptions()
	opts.StepInterval = getDuration("SIM_STEP_INTERVAL", opts.StepInterval)
	opts.TickInterval = getDuration("SIM_TICK_INTERVAL", opts.TickInterval)
	opts.TimeScale = getFloat("SIM_TIME_SCALE", opts.TimeScale)
	opts.TakeOffAltitude = getFloat("TAKEOFF_ALTITUDE", opts.TakeOffAltitude)
	opts.LandingAltitude = getFloat("LANDING_ALTITUDE", opts.LandingAltitude)
	opts.StopTimeout = getDuration("SIM_STOP_TIMEOUT", opts.StopTimeout)
	cfg.Flight = opts
	cfg.ClockInterval = getDuration("SIM_CLOCK_INTERVAL", environment.DefaultClockInterval)

	cfg.DefaultModel = domain.DroneModel{
		Name:             getString("DEFAULT_DRONE_NAME", "quadcopter"),
		MaxSpeed:         getFloat("DEFAULT_DRONE_MAX_SPEED", 10),
		MaxVerticalSpeed: getFloat("DEFAULT_DRONE_MAX_VERTICAL_SPEED", 0.25),
		MaxYawRate:       getFloat("DEFAULT_DRONE_MAX_YAW_RATE", 90),
		MaxAltitude:      getFloat("DEFAULT_DRONE_MAX_ALTITUDE", 40),
		Weight:           getFloat("DEFAULT_DRONE_WEIGHT", 1.5),
		Dimensions: domain.Dimensions{
			Length: getFloat("DEFAULT_DRONE_LENGTH", 0.5),
			Width:  getFloat("DEFAULT_DRONE_WIDTH", 0.5),
			Height: getFloat("DEFAULT_DRONE_HEIGHT", 0.2),
		},
		MaxPayload:          getFloat("DEFAULT_DRONE_MAX_PAYLOAD", 0.5),
		FuelCapacity:        getFloat("DEFAULT_DRONE_FUEL_CAPACITY", 100),
		FuelConsumptionRate: getFloat("DEFAULT_DRONE_FUEL_RATE", 1),
	}

	cfg.LinkEnabled = getBool("LINK_ENABLED", false)
	cfg.LinkTimeout = getDuration("LINK_TIMEOUT", 5*time.Second)
	return cfg
}

func getString(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
