package simulation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lao-tseu-is-alive/go-flock-events/pkg/flock"
	"github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tochemey/goakt/v3/log"
)

//go:embed settings.schema.json
var settingsSchema string

// SinkKind selects where published records go.
type SinkKind string

const (
	SinkLog       SinkKind = "log"
	SinkWebsocket SinkKind = "websocket"
	SinkMemory    SinkKind = "memory"
	SinkNone      SinkKind = "none"
)

type SinkSettings struct {
	Kind       SinkKind `json:"kind"`
	ListenAddr string   `json:"listenAddr"`
	Buffer     int      `json:"buffer"` // per websocket subscriber
}

// Settings is everything a run needs: the flock itself, the sink and the log level.
type Settings struct {
	Flock    flock.Config `json:"flock"`
	Sink     SinkSettings `json:"sink"`
	LogLevel string       `json:"logLevel"`
}

func DefaultSettings() Settings {
	return Settings{
		Flock: flock.DefaultConfig(),
		Sink: SinkSettings{
			Kind:       SinkLog,
			ListenAddr: "localhost:4242",
		},
		LogLevel: "info",
	}
}

// Validate checks the flock config and the sink selection.
func (s Settings) Validate() error {
	if err := s.Flock.Validate(); err != nil {
		return err
	}
	switch s.Sink.Kind {
	case SinkLog, SinkMemory, SinkNone:
	case SinkWebsocket:
		if s.Sink.ListenAddr == "" {
			return fmt.Errorf("%w: websocket sink needs a listen address", flock.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown sink kind %q", flock.ErrInvalidConfig, s.Sink.Kind)
	}
	if _, err := ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", flock.ErrInvalidConfig, err)
	}
	return nil
}

// LoadSettings reads a .json or .toml file, validates it against the embedded schema and
// lays it over DefaultSettings, so a file only needs the values it changes.
func LoadSettings(configFile string) (Settings, error) {
	// 1. Compile Schema
	sch, err := jsonschema.CompileString("settings.schema.json", settingsSchema)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to compile schema: %w", err)
	}

	// 2. Read Config File
	b, err := os.ReadFile(configFile)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to open config file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(configFile), ".toml") {
		if b, err = tomlToJSON(b); err != nil {
			return Settings{}, fmt.Errorf("failed to decode config toml: %w", err)
		}
	}

	// 3. Validate
	var v interface{}
	if err := json.NewDecoder(bytes.NewReader(b)).Decode(&v); err != nil {
		return Settings{}, fmt.Errorf("failed to decode config json: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return Settings{}, fmt.Errorf("config validation failed: %w", err)
	}

	// 4. Unmarshal into Struct
	s := DefaultSettings()
	if err := json.Unmarshal(b, &s); err != nil {
		return Settings{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return s, nil
}

// tomlToJSON lets TOML files go through the same schema as JSON ones. Keys keep their names.
func tomlToJSON(b []byte) ([]byte, error) {
	var doc map[string]any
	if err := toml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// LoadEnvFiles loads .env style files into the process environment. Missing files are
// skipped, variables already set win.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load resolves the settings of a run: the optional env file, then the optional settings
// file (defaults otherwise), then environment overrides. The result is validated.
func Load(configFile, envFile string) (Settings, error) {
	if envFile != "" {
		if err := LoadEnvFiles(envFile); err != nil {
			return Settings{}, err
		}
	}

	s := DefaultSettings()
	if configFile != "" {
		var err error
		if s, err = LoadSettings(configFile); err != nil {
			return Settings{}, err
		}
	}
	if err := s.ApplyEnv(os.LookupEnv); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Environment variables read by ApplyEnv.
const (
	EnvGameID     = "BOIDS_GAME_ID"
	EnvPopulation = "BOIDS_POPULATION"
	EnvBoundary   = "BOIDS_BOUNDARY"
	EnvSink       = "BOIDS_SINK"
	EnvListenAddr = "BOIDS_LISTEN_ADDR"
	EnvLogLevel   = "BOIDS_LOG_LEVEL"
)

// ApplyEnv overrides settings from the environment. lookup is usually os.LookupEnv.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvGameID); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvGameID, err)
		}
		s.Flock.GameID = n
	}
	if v, ok := lookup(EnvPopulation); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPopulation, err)
		}
		s.Flock.Population = n
	}
	if v, ok := lookup(EnvBoundary); ok {
		s.Flock.Boundary = flock.BoundaryMode(strings.ToLower(v))
	}
	if v, ok := lookup(EnvSink); ok {
		s.Sink.Kind = SinkKind(strings.ToLower(v))
	}
	if v, ok := lookup(EnvListenAddr); ok {
		s.Sink.ListenAddr = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		s.LogLevel = v
	}
	return nil
}

// ParseLevel maps a level name to a goakt log level. An empty name means info.
func ParseLevel(name string) (log.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return log.InfoLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "warn", "warning":
		return log.WarningLevel, nil
	case "error":
		return log.ErrorLevel, nil
	}
	return log.InfoLevel, fmt.Errorf("unknown log level %q", name)
}
