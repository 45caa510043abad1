// Package cmd command line
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	glog "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/sparkboard/library/config"
	"github.com/Laisky/sparkboard/library/log"
)

var rootCMD = &cobra.Command{
	Use:   "sparkboard",
	Short: "sparkboard",
	Long:  `a small moderated bulletin board with AI summaries`,
	Args:  gcmd.NoExtraArgs,
}

// initialize binds flags, loads the config file and validates it.
func initialize(ctx context.Context, cmd *cobra.Command) error {
	if err := gconfig.Shared.BindPFlags(cmd.Flags()); err != nil {
		return errors.Wrap(err, "bind pflags")
	}

	if err := setupSettings(ctx); err != nil {
		return errors.Wrap(err, "setup settings")
	}
	if err := setupLogger(ctx); err != nil {
		return errors.Wrap(err, "setup logger")
	}

	return errors.Wrap(validateStartupConfig(), "validate config")
}

func setupSettings(_ context.Context) error {
	// mode
	if gconfig.Shared.GetBool("debug") {
		fmt.Fprintln(os.Stderr, "run in debug mode")
		gconfig.Shared.Set("log-level", "debug")
	}

	if err := loadConfigFile(gconfig.Shared.GetString("config")); err != nil {
		return err
	}

	if changed := config.ApplyEnvOverrides(); len(changed) > 0 {
		log.Logger.Debug("apply env overrides", zap.Strings("keys", changed))
	}
	return nil
}

// loadConfigFile loads cfgPath; the board runs with defaults when no
// config file exists and --config was not given.
func loadConfigFile(cfgPath string) error {
	if cfgPath == "" {
		return nil
	}
	if _, err := os.Stat(cfgPath); err != nil {
		if errors.Is(err, os.ErrNotExist) && !cmdFlagChanged("config") {
			log.Logger.Debug("config file not found, use defaults", zap.String("config", cfgPath))
			return nil
		}
		return errors.Wrapf(err, "stat config %s", cfgPath)
	}

	return config.LoadFromFile(cfgPath)
}

func setupLogger(_ context.Context) error {
	lvl := gconfig.Shared.GetString("log-level")
	if lvl == "" {
		return nil
	}
	if err := log.Logger.ChangeLevel(glog.Level(lvl)); err != nil {
		return errors.Wrapf(err, "change log level to %s", lvl)
	}

	return nil
}

// cmdFlagChanged reports whether a persistent flag was set on the command line.
func cmdFlagChanged(name string) bool {
	f := rootCMD.PersistentFlags().Lookup(name)
	return f != nil && f.Changed
}

// preRunInitialize is the PreRunE shared by every subcommand.
func preRunInitialize(cmd *cobra.Command, _ []string) error {
	return initialize(cmd.Context(), cmd)
}

func init() {
	rootCMD.PersistentFlags().Bool("debug", false, "run in debug mode")
	rootCMD.PersistentFlags().String("listen", "localhost:8080", "like `localhost:8080`")
	rootCMD.PersistentFlags().StringP("config", "c", "settings.yml", "config file path")
	rootCMD.PersistentFlags().String("log-level", "info", "`debug/info/error`")
}

// Execute execute root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCMD.ExecuteContext(ctx); err != nil {
		glog.Shared.Panic("start", zap.Error(err))
	}
}
