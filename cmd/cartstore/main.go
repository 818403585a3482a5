package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/gomarket/cartstore"
	"github.com/gomarket/cartstore/internal/cliconfig"
	"github.com/gomarket/cartstore/pkg/cart"
	"github.com/gomarket/cartstore/pkg/log"
)

const helpDescription = `
Inspect and edit the shopping cart persisted by goMarket clients.

Highlights:
  - Reads and writes the same "@goMarket:products" record the apps use.
  - Embedded buntdb by default; a JSON file, redis or memory on request.
  - Configure via file, env (CARTSTORE_*), or flags.
`

var exampleUsage = strings.TrimSpace(`
  cartstore add --title "Running shoe" --price 79.90
  cartstore inc 5f0c2d1e-0d7b-4c43-9a55-0e3c8f0b2a61
  cartstore --backend redis --redis-addr localhost:6379 list
  cartstore --backend file --data-dir /tmp/cart watch
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	out     io.Writer
	errOut  io.Writer
	logger  log.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "cartstore: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	c := &cli{
		cfg:    cliconfig.DefaultConfig(),
		out:    out,
		errOut: errOut,
	}

	root := &cobra.Command{
		Use:               "cartstore",
		Short:             "Inspect and edit a persisted goMarket shopping cart",
		Long:              strings.TrimSpace(helpDescription),
		Example:           exampleUsage,
		Version:           fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.resolve,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	// Flags
	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.gomarket/cartstore.toml)")
	flags.StringVar(&c.cfg.Backend, "backend", c.cfg.Backend, "storage backend: bunt, file, redis or memory")
	flags.StringVar(&c.cfg.DataDir, "data-dir", c.cfg.DataDir, "directory of the bunt and file backends")
	flags.StringVar(&c.cfg.RedisAddr, "redis-addr", c.cfg.RedisAddr, "redis host:port or redis:// URL")
	flags.StringVar(&c.cfg.RedisPassword, "redis-password", c.cfg.RedisPassword, "redis password")
	flags.IntVar(&c.cfg.RedisDB, "redis-db", c.cfg.RedisDB, "redis database number")
	flags.StringVar(&c.cfg.RedisPrefix, "redis-prefix", c.cfg.RedisPrefix, "prefix prepended to the redis key")
	flags.StringVar(&c.cfg.Key, "key", c.cfg.Key, "storage key of the cart")
	flags.DurationVar(&c.cfg.FlushTimeout, "flush-timeout", c.cfg.FlushTimeout, "time allowed for pending writes on exit")
	flags.StringVar(&c.cfg.LogFormat, "log-format", c.cfg.LogFormat, "log format: console, json or logrus")
	flags.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level: debug, info, warn or error")

	root.AddCommand(
		c.listCommand(),
		c.addCommand(),
		c.incCommand(),
		c.decCommand(),
		c.clearCommand(),
		c.watchCommand(),
	)
	return root
}

// resolve applies config file and environment below explicitly set flags,
// validates the result and builds the logger.
func (c *cli) resolve(cmd *cobra.Command, args []string) error {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
	} else if c.cfgPath != "" {
		return fmt.Errorf("config file %s not found", c.cfgPath)
	}

	// Apply environment variables (CARTSTORE_*)
	// These override file config but are overridden by flags (checked via changed map)
	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return err
	}

	if err := c.cfg.Validate(); err != nil {
		return err
	}

	logger, err := cliconfig.NewLogger(c.cfg, c.errOut)
	if err != nil {
		return err
	}
	c.logger = logger

	logger.Debug("configuration",
		log.String("backend", c.cfg.Backend),
		log.String("data_dir", c.cfg.DataDir),
		log.String("redis_addr", c.cfg.RedisAddr),
		log.String("key", c.cfg.Key),
	)
	return nil
}

// withStore runs fn against a loaded store and flushes its changes.
func (c *cli) withStore(ctx context.Context, fn func(*cart.Store) error, opts ...cart.Option) error {
	store, err := cartstore.Open(c.cfg.StoreConfig(), c.logger, opts...)
	if err != nil {
		return err
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("start store: %w", err)
	}

	runErr := store.WaitLoaded(ctx)
	if runErr == nil {
		runErr = fn(store)
	}
	if runErr == nil {
		// Pending changes are written even after an interrupt.
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FlushTimeout)
		runErr = store.Flush(flushCtx)
		cancel()
	}
	if err := store.Stop(); err != nil && runErr == nil {
		runErr = fmt.Errorf("stop store: %w", err)
	}
	return runErr
}
