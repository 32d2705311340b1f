package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/veldstays/backoffice/internal/httpapi"
	"github.com/veldstays/backoffice/internal/notify"
	"github.com/veldstays/backoffice/internal/store/gormstore"
	"github.com/veldstays/backoffice/pkg/availability"
	"github.com/veldstays/backoffice/pkg/billing"
)

const (
	flagDatabaseURL       = "database-url"
	flagListenAddr        = "listen-addr"
	flagAuthSigningKey    = "auth-signing-key"
	flagAuthIssuer        = "auth-issuer"
	flagAllowedOrigins    = "allowed-origins"
	configKeyDatabaseURL  = "database_url"
	configKeyListenAddr   = "listen_addr"
	configKeySigningKey   = "auth_signing_key"
	configKeyAuthIssuer   = "auth_issuer"
	configKeyOrigins      = "allowed_origins"
	defaultDatabaseURL    = "sqlite:///tmp/backoffice.db"
	defaultHTTPListenAddr = ":9090"
)

type runtimeConfig struct {
	DatabaseURL    string
	ListenAddr     string
	AuthSigningKey string
	AuthIssuer     string
	AllowedOrigins []string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "backofficed: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "backofficed",
		Short:         "Availability and payment ledger API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or SQLite connection string")
	cmd.Flags().String(flagListenAddr, defaultHTTPListenAddr, "HTTP listen address")
	cmd.Flags().String(flagAuthSigningKey, "", "HMAC key for admin bearer tokens")
	cmd.Flags().String(flagAuthIssuer, "", "expected issuer of admin bearer tokens")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-delimited CORS origins")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		configKeyDatabaseURL: "DATABASE_URL",
		configKeyListenAddr:  "HTTP_LISTEN_ADDR",
		configKeySigningKey:  "AUTH_SIGNING_KEY",
		configKeyAuthIssuer:  "AUTH_ISSUER",
		configKeyOrigins:     "ALLOWED_ORIGINS",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}

	flags := map[string]string{
		configKeyDatabaseURL: flagDatabaseURL,
		configKeyListenAddr:  flagListenAddr,
		configKeySigningKey:  flagAuthSigningKey,
		configKeyAuthIssuer:  flagAuthIssuer,
		configKeyOrigins:     flagAllowedOrigins,
	}
	for key, flag := range flags {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultHTTPListenAddr
	}
	cfg.AuthSigningKey = viper.GetString(configKeySigningKey)
	cfg.AuthIssuer = viper.GetString(configKeyAuthIssuer)
	cfg.AllowedOrigins = httpapi.ParseAllowedOrigins(viper.GetString(configKeyOrigins))

	if cfg.AuthSigningKey == "" {
		return fmt.Errorf("auth signing key is required")
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer cleanup()

	if err := prepareSchema(gormDB, driver); err != nil {
		return err
	}

	clock := func() time.Time { return time.Now().UTC() }
	availabilityService, err := availability.NewService(
		gormstore.NewAvailabilityStore(gormDB),
		clock,
		availability.WithOperationLogger(notify.NewAvailabilityDispatcher(logger)),
	)
	if err != nil {
		return fmt.Errorf("availability service init: %w", err)
	}
	billingService, err := billing.NewService(
		gormstore.NewBillingStore(gormDB),
		clock,
		billing.WithOperationLogger(notify.NewBillingDispatcher(logger)),
	)
	if err != nil {
		return fmt.Errorf("billing service init: %w", err)
	}

	server, err := httpapi.NewServer(httpapi.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
		AuthSigningKey: cfg.AuthSigningKey,
		AuthIssuer:     cfg.AuthIssuer,
	}, logger, availabilityService, billingService)
	if err != nil {
		return fmt.Errorf("http server init: %w", err)
	}
	return server.Run(ctx)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	gormConfig := &gorm.Config{}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormConfig)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "backoffice.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

func prepareSchema(db *gorm.DB, driver string) error {
	if driver != "sqlite" {
		return nil
	}
	if err := gormstore.Migrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
