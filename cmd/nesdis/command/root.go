// Package command builds the nesdis cobra command tree: persistent
// --config/--log-level flags shared by every verb, a YAML config loaded
// once in PersistentPreRunE, and a zap logger handed down through the
// command's context.
package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nesdis/internal/buildinfo"
	"nesdis/internal/config"
)

type ctxKey int

const (
	ctxKeyConfig ctxKey = iota
	ctxKeyLogger
)

// Root builds the top-level nesdis command and attaches every subcommand.
func Root() *cobra.Command {
	var configPath string
	var logLevel string

	root := &cobra.Command{
		Use:           "nesdis",
		Short:         "Interactive 6502/NES disassembler and emulator core",
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = config.DefaultPath()
			}
			cfg, err := config.LoadFromFile(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}

			log, err := buildLogger(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), ctxKeyConfig, cfg)
			ctx = context.WithValue(ctx, ctxKeyLogger, log)
			cmd.SetContext(ctx)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to nesdis.yaml (default: "+config.DefaultPath()+")")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the config file's log level (debug, info, warn, error)")

	root.AddCommand(disasmCommand())
	root.AddCommand(runCommand())
	root.AddCommand(versionCommand())
	return root
}

func buildLogger(level string) (*zap.Logger, error) {
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("unknown log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = ""
	return cfg.Build()
}

func configFromContext(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(ctxKeyConfig).(*config.Config)
	if cfg == nil {
		cfg = config.New()
	}
	return cfg
}

// resolveROMPath leaves an absolute or already-existing path untouched, and
// otherwise looks for it under the config file's configured ROMs directory
// -- the same "just the filename, resolved against a configured root"
// convenience gones' own Paths.ROMs setting exists for.
func resolveROMPath(cfg *config.Config, romPath string) string {
	if romPath == "" || filepath.IsAbs(romPath) {
		return romPath
	}
	if _, err := os.Stat(romPath); err == nil {
		return romPath
	}
	candidate := filepath.Join(cfg.Paths.ROMs, romPath)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return romPath
}

// addROMFlag registers the --rom flag shared by disasm and run. It does not
// mark the flag required; both callers do that themselves with
// cmd.MarkFlagRequired("rom").
func addROMFlag(fs *pflag.FlagSet, target *string) {
	fs.StringVar(target, "rom", "", "path to an iNES ROM file")
}

func loggerFromContext(cmd *cobra.Command) *zap.Logger {
	log, _ := cmd.Context().Value(ctxKeyLogger).(*zap.Logger)
	if log == nil {
		log = zap.NewNop()
	}
	return log
}
