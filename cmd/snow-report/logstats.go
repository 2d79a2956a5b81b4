package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/i474232898/snow-report/internal/config"
	"github.com/i474232898/snow-report/internal/logger"
	"github.com/i474232898/snow-report/internal/logminer"
	"github.com/i474232898/snow-report/internal/logship"
	"github.com/i474232898/snow-report/internal/objectstore"
	"github.com/i474232898/snow-report/internal/resort"
)

type logStatsFlags struct {
	file    string
	object  string
	latest  bool
	resorts []string
}

func logStatsCommand(opts *options) *cobra.Command {
	flags := &logStatsFlags{}

	cmd := &cobra.Command{
		Use:   "logstats",
		Short: "Print activity statistics mined from a log",
		Long: `Mines an activity log and prints the statistics as JSON.

The log is read from --file (the live log by default), from an archived
object with --object, or from the most recent upload in the ledger with --latest.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile, opts.envFile)
			if err != nil {
				return err
			}

			text, err := readLog(cmd, cfg, flags)
			if err != nil {
				return err
			}

			keys := flags.resorts
			if len(keys) == 0 {
				if reg, err := resort.Load(cfg.RegistryPath); err == nil {
					keys = reg.Keys()
				}
			}

			miner := logminer.New("", cfg.Log.Name, cfg.BotHandle)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(miner.Report(text, keys...))
		},
	}

	cmd.Flags().StringVar(&flags.file, "file", "", "log file to mine (defaults to the configured log path)")
	cmd.Flags().StringVar(&flags.object, "object", "", "archived log object to download and mine")
	cmd.Flags().BoolVar(&flags.latest, "latest", false, "mine the most recent upload recorded in the ledger")
	cmd.Flags().StringSliceVar(&flags.resorts, "resorts", nil, "resort keys to count queries for (defaults to every registered resort)")
	cmd.MarkFlagsMutuallyExclusive("file", "object", "latest")

	return cmd
}

func readLog(cmd *cobra.Command, cfg *config.AppConfig, flags *logStatsFlags) (string, error) {
	key := flags.object
	if flags.latest {
		up, err := logship.Latest(cfg.Log.LedgerPath)
		if err != nil {
			return "", err
		}
		key = up.Key
	}

	if key == "" {
		path := flags.file
		if path == "" {
			path = cfg.Log.Path
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read log: %w", err)
		}
		return string(data), nil
	}

	if !cfg.Minio.Enabled() {
		return "", errors.New("object storage is not configured")
	}
	storage, err := objectstore.NewMinioStorage(cmd.Context(), objectstore.Options{
		Endpoint:  cfg.Minio.Endpoint,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		Bucket:    cfg.Minio.Bucket,
		Region:    cfg.Minio.Region,
		UseSSL:    cfg.Minio.UseSSL,
	}, logger.New("warn", "snow-report"))
	if err != nil {
		return "", err
	}

	rc, err := storage.Download(cmd.Context(), key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var b strings.Builder
	if _, err := io.Copy(&b, rc); err != nil {
		return "", fmt.Errorf("failed to download %s: %w", key, err)
	}
	return b.String(), nil
}
