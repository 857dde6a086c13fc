package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/coilworks/hvacpilot/internal/api"
	"github.com/coilworks/hvacpilot/internal/auth"
	"github.com/coilworks/hvacpilot/internal/engine"
	"github.com/coilworks/hvacpilot/internal/genai"
	"github.com/coilworks/hvacpilot/internal/knowledge"
	"github.com/coilworks/hvacpilot/internal/manuals"
	"github.com/coilworks/hvacpilot/internal/store"
	"github.com/coilworks/hvacpilot/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for hvacpilot state data
	DefaultStateDir = "/var/lib/hvacpilot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "hvacpilot.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags); err != nil {
		slog.Error("hvacpilot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("hvacpilot exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL   string
	StateDir      string
	KnowledgePath string
	OpenAIKey     string
	JWTSecret     string
	APIAddr       string
	S3Endpoint    string
	S3Bucket      string
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDSN         *string
	knowledgePath *string
	openaiKey     *string
	jwtSecret     *string
	apiAddr       *string
	s3Endpoint    *string
	s3Bucket      *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      os.Getenv("HVACPILOT_STATE_DIR"),
		KnowledgePath: os.Getenv("KNOWLEDGE_PATH"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		APIAddr:       os.Getenv("API_ADDR"),
		S3Endpoint:    os.Getenv("S3_ENDPOINT"),
		S3Bucket:      os.Getenv("S3_BUCKET"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No HVACPILOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"HVACPILOT_STATE_DIR", config.StateDir,
		"KNOWLEDGE_PATH", config.KnowledgePath,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"JWT_SECRET_SET", config.JWTSecret != "",
		"API_ADDR", config.APIAddr,
		"S3_ENDPOINT", config.S3Endpoint,
		"S3_BUCKET", config.S3Bucket)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for hvacpilot data (overrides $HVACPILOT_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN (overrides $DATABASE_URL)"),
		knowledgePath: flag.String("knowledge", config.KnowledgePath, "path to knowledge document, empty for the embedded default (overrides $KNOWLEDGE_PATH)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		jwtSecret:     flag.String("jwt-secret", config.JWTSecret, "JWT signing secret, empty disables accounts (overrides $JWT_SECRET)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		s3Endpoint:    flag.String("s3-endpoint", config.S3Endpoint, "S3 endpoint for manual storage, empty disables manuals (overrides $S3_ENDPOINT)"),
		s3Bucket:      flag.String("s3-bucket", config.S3Bucket, "S3 bucket for manual storage (overrides $S3_BUCKET)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"knowledgePath", *flags.knowledgePath,
		"openaiKeySet", *flags.openaiKey != "",
		"jwtSecretSet", *flags.jwtSecret != "",
		"apiAddr", *flags.apiAddr,
		"s3Endpoint", *flags.s3Endpoint)

	return flags
}

// run wires all modules together and serves until the context is cancelled.
func run(ctx context.Context, flags Flags) error {
	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	knowledgeProvider, watcher, err := buildKnowledge(flags)
	if err != nil {
		return err
	}

	managerOpts := []engine.ManagerOption{engine.WithHistory(st)}
	if *flags.openaiKey != "" {
		aiClient, err := genai.NewClient(
			genai.WithAPIKey(*flags.openaiKey),
			genai.WithTimeout(util.ParseDurationEnv("OPENAI_TIMEOUT", genai.DefaultTimeout)),
		)
		if err != nil {
			return err
		}
		managerOpts = append(managerOpts, engine.WithDiagnoser(aiClient))
	} else {
		slog.Warn("no OpenAI API key configured, AI fallback diagnoses will be unavailable")
	}
	manager := engine.NewManager(knowledgeProvider, managerOpts...)

	var authSvc *auth.Service
	if *flags.jwtSecret != "" {
		authSvc, err = auth.NewService(st, auth.WithSecret(*flags.jwtSecret))
		if err != nil {
			return err
		}
	} else {
		slog.Warn("no JWT secret configured, account endpoints disabled")
	}

	var manualSvc *manuals.Service
	if *flags.s3Endpoint != "" {
		objects, err := manuals.NewMinioStore(ctx,
			manuals.WithEndpoint(*flags.s3Endpoint),
			manuals.WithBucket(*flags.s3Bucket),
			manuals.WithSSL(util.ParseBoolEnv("S3_USE_SSL", false)),
		)
		if err != nil {
			return err
		}
		manualSvc = manuals.NewService(st, objects)
	} else {
		slog.Warn("no S3 endpoint configured, manual endpoints disabled")
	}

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server, err := api.NewServer(api.Deps{
		Manager:   manager,
		Knowledge: knowledgeProvider,
		Store:     st,
		Auth:      authSvc,
		Manuals:   manualSvc,
	}, apiOpts...)
	if err != nil {
		return err
	}

	if watcher != nil {
		watcher.SetSwapHook(server.InvalidateLibraryCache)
		go watcher.Run(ctx)
		defer watcher.Close()
	}

	slog.Info("Bootstrapping hvacpilot with configured modules")
	return server.Run(ctx)
}

// defaultDSN resolves the database DSN, falling back to a SQLite file under
// the state directory. Derived after flag parsing so -state-dir takes effect.
func defaultDSN(dsn, stateDir string) string {
	if dsn != "" {
		return dsn
	}
	return filepath.Join(stateDir, DefaultDBFileName)
}

// buildStore selects the storage backend from the DSN.
func buildStore(flags Flags) (store.Store, error) {
	dsn := defaultDSN(*flags.dbDSN, *flags.stateDir)
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", dsn)
	}
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// buildKnowledge loads the knowledge snapshot and, for file-backed documents,
// a live-reload watcher that swaps snapshots atomically.
func buildKnowledge(flags Flags) (func() *knowledge.Store, *knowledge.Watcher, error) {
	var snapshot atomic.Pointer[knowledge.Store]
	provider := func() *knowledge.Store { return snapshot.Load() }

	path := *flags.knowledgePath
	if path == "" {
		st, err := knowledge.LoadDefault()
		if err != nil {
			return nil, nil, err
		}
		snapshot.Store(st)
		slog.Info("using embedded knowledge document")
		return provider, nil, nil
	}

	st, err := knowledge.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	snapshot.Store(st)

	watcher, err := knowledge.NewWatcher(path, func(next *knowledge.Store) {
		snapshot.Store(next)
	})
	if err != nil {
		slog.Warn("knowledge watcher unavailable, live reload disabled", "error", err)
		return provider, nil, nil
	}
	return provider, watcher, nil
}
