package cmd

import (
	"fmt"
	"time"

	"github.com/matheuskafuri/trendscope/internal/config"
	"github.com/matheuskafuri/trendscope/internal/pipeline"
	"github.com/matheuskafuri/trendscope/internal/store"
	"github.com/matheuskafuri/trendscope/internal/tui"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := setup(nil)
	if err != nil {
		return err
	}
	defer closeLog()

	svc, err := pipeline.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	opts := tui.RunOpts{Cfg: cfg, Services: svc, Mode: flagMode}

	db, err := store.Open(config.HistoryPath())
	if err != nil {
		// History is optional for the dashboard.
		logrus.WithError(err).Warn("run history unavailable")
	} else {
		defer db.Close()
		if n, err := db.Prune(cfg.RetentionDuration()); err == nil && n > 0 {
			logrus.WithField("runs", n).Info("pruned old history")
		}
		opts.Recorder = db
	}

	return tui.Run(opts)
}

func parseSince(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}
