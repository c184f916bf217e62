package loader

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	loginfra "github.com/avelinor/orders-service/internal/infrastructure/logger"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/joho/godotenv"
)

const (
	envConfPath       = "CONF_PATH"
	envAppEnv         = "APP_ENV"
	envDatabaseURL    = "DATABASE_URL"
	envPubsubProject  = "PUBSUB_PROJECT_ID"
	envPubsubTopic    = "PUBSUB_TOPIC_ID"
	envPubsubEmulator = "PUBSUB_EMULATOR_HOST"
	envNotifierMode   = "NOTIFIER_MODE"
)

var envFileNames = []string{".env.local", ".env"}

// ServiceMetadata identifies this process to logs and telemetry.
type ServiceMetadata struct {
	Name        string
	Version     string
	Environment string
	InstanceID  string
}

// LoggerConfig derives the logger settings from the service metadata.
func (m ServiceMetadata) LoggerConfig() loginfra.Config {
	return loginfra.Config{
		Service: m.Name,
		Version: m.Version,
		HostID:  m.InstanceID,
		Env:     m.Environment,
	}
}

// Loader aggregates the normalized configuration for Wire injection.
type Loader struct {
	Bootstrap *Bootstrap
	Service   ServiceMetadata
	LoggerCfg loginfra.Config
}

// BuildError captures where in the load pipeline a failure happened.
type BuildError struct {
	Stage string
	Path  string
	Err   error
}

func (e BuildError) Error() string {
	if e.Stage == "" {
		return e.Err.Error()
	}
	if e.Path != "" {
		return fmt.Sprintf("config %s at %q: %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Stage, e.Err)
}

func (e BuildError) Unwrap() error {
	return e.Err
}

// ParseConfPath registers and parses the -conf flag.
func ParseConfPath(fs *flag.FlagSet, args []string) (string, error) {
	confPath := fs.String("conf", "", "config path, eg: -conf configs")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	return *confPath, nil
}

// ResolveConfPath applies the fallback chain: explicit flag, CONF_PATH env,
// default directory.
func ResolveConfPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(envConfPath); env != "" {
		return env
	}
	return defaultConfPath
}

// LoadBootstrap loads, overrides, normalizes and validates the configuration.
// The returned cleanup closes the underlying config source.
func LoadBootstrap(confPath, name, version string) (*Loader, func(), error) {
	confPath = ResolveConfPath(confPath)
	loadEnvFiles(confPath)

	c := config.New(config.WithSource(file.NewSource(confPath)))
	if err := c.Load(); err != nil {
		return nil, nil, BuildError{Stage: "load", Path: confPath, Err: err}
	}
	cleanup := func() { _ = c.Close() }

	var raw fileBootstrap
	if err := c.Scan(&raw); err != nil {
		cleanup()
		return nil, nil, BuildError{Stage: "scan", Path: confPath, Err: err}
	}
	applyEnvOverrides(&raw)

	bootstrap, err := normalize(raw)
	if err != nil {
		cleanup()
		return nil, nil, BuildError{Stage: "normalize", Path: confPath, Err: err}
	}
	if err := bootstrap.validate(); err != nil {
		cleanup()
		return nil, nil, BuildError{Stage: "validate", Path: confPath, Err: err}
	}

	meta := buildServiceMetadata(name, version)
	return &Loader{
		Bootstrap: bootstrap,
		Service:   meta,
		LoggerCfg: meta.LoggerConfig(),
	}, cleanup, nil
}

// applyEnvOverrides lets the environment beat the file for the usual
// 12-factor knobs.
func applyEnvOverrides(raw *fileBootstrap) {
	if raw == nil {
		return
	}
	if dsn := os.Getenv(envDatabaseURL); dsn != "" {
		raw.Data.Postgres.DSN = dsn
	}
	if project := os.Getenv(envPubsubProject); project != "" {
		raw.Pubsub.ProjectID = project
	}
	if topic := os.Getenv(envPubsubTopic); topic != "" {
		raw.Pubsub.TopicID = topic
	}
	if emulator := os.Getenv(envPubsubEmulator); emulator != "" {
		raw.Pubsub.EmulatorEndpoint = emulator
	}
	if mode := os.Getenv(envNotifierMode); mode != "" {
		raw.Notifier.Mode = mode
	}
}

// validate rejects configurations the process cannot start with.
func (b *Bootstrap) validate() error {
	if b.Postgres.DSN == "" {
		return fmt.Errorf("postgres DSN is required (set DATABASE_URL or data.postgres.dsn)")
	}
	switch b.NotifierMode {
	case NotifierModePubsub:
		if b.Pubsub.ProjectID == "" || b.Pubsub.TopicID == "" {
			return fmt.Errorf("notifier mode %q requires pubsub.project_id and pubsub.topic_id", b.NotifierMode)
		}
	case NotifierModeLog:
	default:
		return fmt.Errorf("unknown notifier mode: %q", b.NotifierMode)
	}
	return nil
}

func buildServiceMetadata(name, version string) ServiceMetadata {
	if name == "" {
		name = defaultServiceName
	}
	if version == "" {
		version = defaultServiceVersion
	}
	env := os.Getenv(envAppEnv)
	if env == "" {
		env = defaultEnvironment
	}
	host, _ := os.Hostname()
	return ServiceMetadata{
		Name:        name,
		Version:     version,
		Environment: env,
		InstanceID:  host,
	}
}

// loadEnvFiles loads .env overlays best effort; missing files are fine.
func loadEnvFiles(confPath string) {
	files := envFileCandidates(confPath)
	if len(files) == 0 {
		return
	}
	_ = godotenv.Load(files...)
}

// envFileCandidates searches the conf directory and the working directory for
// .env.local then .env, deduplicated, existing files only.
func envFileCandidates(confPath string) []string {
	dirs := orderedDirs(confPath)
	seen := make(map[string]struct{})
	var files []string
	for _, dir := range dirs {
		for _, name := range envFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err != nil {
				continue
			}
			if _, ok := seen[candidate]; ok {
				continue
			}
			files = append(files, candidate)
			seen[candidate] = struct{}{}
		}
	}
	return files
}

func orderedDirs(confPath string) []string {
	var dirs []string
	appendUnique := func(path string) {
		if path == "" {
			return
		}
		clean := filepath.Clean(path)
		for _, existing := range dirs {
			if existing == clean {
				return
			}
		}
		dirs = append(dirs, clean)
	}

	if confPath != "" {
		if info, err := os.Stat(confPath); err == nil {
			if info.IsDir() {
				appendUnique(confPath)
			} else {
				appendUnique(filepath.Dir(confPath))
			}
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		appendUnique(cwd)
	}
	return dirs
}

// parseDuration parses an optional duration string; empty means fallback.
func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", value, err)
	}
	return d, nil
}
