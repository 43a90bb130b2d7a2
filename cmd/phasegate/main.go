package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	serveradapter "github.com/ebersole/phasegate/internal/adapters/server"
	"github.com/ebersole/phasegate/internal/adapters/storage/sqlite"
	"github.com/ebersole/phasegate/internal/app"
	"github.com/ebersole/phasegate/internal/config"
	"github.com/ebersole/phasegate/internal/domain"
	"github.com/ebersole/phasegate/internal/platform"
)

// version stores a package-level helper value.
var version = "dev"

// main handles main.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// run runs the requested command flow.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("phasegate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		configPath string
		dbPath     string
		appName    string
		devMode    bool
		showVer    bool
	)
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("PHASEGATE_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("PHASEGATE_APP_NAME")); envApp != "" {
		appName = envApp
	} else {
		appName = "phasegate"
	}
	fs.StringVar(&configPath, "config", "", "path to config TOML")
	fs.StringVar(&dbPath, "db", "", "path to sqlite database")
	fs.StringVar(&appName, "app", appName, "application name for config/data path resolution")
	fs.BoolVar(&devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	fs.BoolVar(&showVer, "version", false, "show version")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showVer {
		_, _ = fmt.Fprintf(stdout, "phasegate %s\n", version)
		return nil
	}

	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: appName,
		DevMode: devMode,
	})
	if err != nil {
		return err
	}

	command := firstArg(fs.Args())
	switch command {
	case "paths":
		_, _ = fmt.Fprintf(stdout, "app: %s\n", appName)
		_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", devMode)
		_, _ = fmt.Fprintf(stdout, "config: %s\n", paths.ConfigPath)
		_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
		_, _ = fmt.Fprintf(stdout, "db: %s\n", paths.DBPath)
		return nil
	case "", "serve", "seed", "refresh-workload":
		// Continue.
	default:
		return fmt.Errorf("unknown command: %s", command)
	}

	dbOverridden := strings.TrimSpace(dbPath) != ""
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("PHASEGATE_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("PHASEGATE_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	defaultCfg := config.Default(dbPath)
	cfg, err := config.Load(configPath, defaultCfg)
	if err != nil {
		return fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(stderr, appName, cfg.Logging)
	if err != nil {
		return fmt.Errorf("configure runtime logger: %w", err)
	}
	defer func() {
		if closeErr := logger.Close(); closeErr != nil {
			_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", closeErr)
		}
	}()

	logger.Info("startup configuration resolved", "app", appName, "dev_mode", devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if logPath := logger.LogPath(); logPath != "" {
		logger.Info("rotated file logging enabled", "path", logPath)
	}

	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		return fmt.Errorf("open sqlite repository: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Warn("sqlite close failed", "db_path", cfg.Database.Path, "err", closeErr)
		}
	}()

	directory, err := sqlite.NewDirectory(repo)
	if err != nil {
		return fmt.Errorf("open membership directory: %w", err)
	}

	svc := app.NewService(repo, directory, uuid.NewString, time.Now, app.ServiceConfig{
		LeadCap: cfg.Policy.LeadCap,
	})
	logger.Debug("application service initialized", "lead_cap", cfg.Policy.LeadCap)

	switch command {
	case "", "serve":
		logger.Info("command flow start", "command", "serve")
		if err := runServe(ctx, svc, logger, cfg, configPath, defaultCfg, fs.Args()); err != nil {
			logger.Error("command flow failed", "command", "serve", "err", err)
			return fmt.Errorf("run serve command: %w", err)
		}
		logger.Info("command flow complete", "command", "serve")
		return nil
	case "seed":
		logger.Info("command flow start", "command", "seed")
		if err := runSeed(ctx, directory, fs.Args()[1:], stdout); err != nil {
			logger.Error("command flow failed", "command", "seed", "err", err)
			return fmt.Errorf("run seed command: %w", err)
		}
		logger.Info("command flow complete", "command", "seed")
		return nil
	case "refresh-workload":
		logger.Info("command flow start", "command", "refresh-workload")
		if err := runRefreshWorkload(ctx, svc, fs.Args()[1:], stdout); err != nil {
			logger.Error("command flow failed", "command", "refresh-workload", "err", err)
			return fmt.Errorf("run refresh-workload command: %w", err)
		}
		logger.Info("command flow complete", "command", "refresh-workload")
		return nil
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runServe runs the serve subcommand flow: the HTTP server plus the config
// file watcher, torn down together.
func runServe(ctx context.Context, svc *app.Service, logger *runtimeLogger, cfg config.Config, configPath string, defaults config.Config, args []string) error {
	if len(args) > 0 && args[0] == "serve" {
		args = args[1:]
	}
	fs := flag.NewFlagSet("phasegate serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		httpBind    string
		apiEndpoint string
		watchConfig bool
	)
	fs.StringVar(&httpBind, "http", cfg.Server.Bind, "HTTP listen address")
	fs.StringVar(&apiEndpoint, "api-endpoint", cfg.Server.APIEndpoint, "HTTP API base endpoint")
	fs.BoolVar(&watchConfig, "watch-config", true, "hot-reload logging level on config changes")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse serve flags: %w", err)
	}
	if len(fs.Args()) > 0 {
		return fmt.Errorf("unexpected serve arguments: %v", fs.Args())
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveradapter.Run(ctx, serveradapter.Config{
			HTTPBind:    httpBind,
			APIEndpoint: apiEndpoint,
		}, svc)
	})
	if watchConfig && strings.TrimSpace(configPath) != "" {
		g.Go(func() error {
			return config.Watch(ctx, configPath, defaults, func(reloaded config.Config) {
				if err := logger.SetLevel(reloaded.Logging.Level); err != nil {
					logger.Warn("logging level reload failed", "err", err)
					return
				}
				logger.Info("logging level applied", "level", reloaded.Logging.Level)
			})
		})
	}
	return g.Wait()
}

// runSeed mirrors one membership row from the platform team registry.
func runSeed(ctx context.Context, directory *sqlite.Directory, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("phasegate seed", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		teamID string
		userID string
		role   string
		remove bool
	)
	fs.StringVar(&teamID, "team", "", "team id")
	fs.StringVar(&userID, "user", "", "user id")
	fs.StringVar(&role, "role", "member", "team role (owner, admin, member)")
	fs.BoolVar(&remove, "remove", false, "remove the membership row instead of upserting")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse seed flags: %w", err)
	}
	if strings.TrimSpace(teamID) == "" || strings.TrimSpace(userID) == "" {
		return fmt.Errorf("seed requires -team and -user")
	}

	if remove {
		if err := directory.RemoveMember(ctx, teamID, userID); err != nil {
			return fmt.Errorf("remove member: %w", err)
		}
		_, _ = fmt.Fprintf(stdout, "removed %s from %s\n", userID, teamID)
		return nil
	}

	member, err := domain.NewTeamMember(teamID, userID, domain.TeamRole(role), time.Now())
	if err != nil {
		return fmt.Errorf("build member: %w", err)
	}
	if err := directory.UpsertMember(ctx, member); err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	_, _ = fmt.Fprintf(stdout, "seeded %s as %s of %s\n", member.UserID, member.Role, member.TeamID)
	return nil
}

// runRefreshWorkload rebuilds the workload cache for one workspace.
func runRefreshWorkload(ctx context.Context, svc *app.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("phasegate refresh-workload", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var workspaceID string
	fs.StringVar(&workspaceID, "workspace", "", "workspace id")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse refresh-workload flags: %w", err)
	}
	if strings.TrimSpace(workspaceID) == "" {
		return fmt.Errorf("refresh-workload requires -workspace")
	}
	if err := svc.RefreshWorkload(ctx, workspaceID); err != nil {
		return fmt.Errorf("refresh workload: %w", err)
	}
	_, _ = fmt.Fprintf(stdout, "workload cache rebuilt for %s\n", workspaceID)
	return nil
}

// firstArg returns the first positional argument, if any.
func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return strings.TrimSpace(args[0])
}

// parseBoolEnv parses one boolean environment value.
func parseBoolEnv(key string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return false, false
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return parsed, true
}
