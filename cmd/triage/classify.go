package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/comfforts/logger"
	"github.com/spf13/cobra"

	"github.com/hankgalt/triage"
	"github.com/hankgalt/triage/internal/config"
	"github.com/hankgalt/triage/pkg/domain"
)

var errEmptyText = errors.New("please enter some text")

func newClassifyCmd(envFile *string) *cobra.Command {
	var showAll bool

	cmd := &cobra.Command{
		Use:   "classify [complaint text]",
		Short: "Classify one complaint and print the predicted department",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return errEmptyText
			}

			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			l, err := logger.LoggerFromContext(ctx)
			if err != nil {
				l = logger.GetSlogLogger()
			}

			p := triage.NewPipeline(cfg.Classifier())
			defer func() {
				if err := p.Close(ctx); err != nil {
					l.Warn("close pipeline", "error", err.Error())
				}
			}()

			if _, err := p.Load(ctx); err != nil {
				return err
			}
			pred, err := p.Classify(ctx, text)
			if err != nil {
				return err
			}
			return printPrediction(cmd.OutOrStdout(), pred, showAll)
		},
	}
	cmd.Flags().BoolVar(&showAll, "all", false, "print every department's score")
	return cmd
}

func printPrediction(w io.Writer, pred *domain.Prediction, showAll bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Predicted Department:\t%s\n", pred.TopLabel)
	fmt.Fprintf(tw, "Confidence Score:\t%.1f%% (%s)\n", pred.Confidence*100, pred.Band)
	if showAll {
		fmt.Fprintln(tw)
		for _, s := range pred.Distribution {
			fmt.Fprintf(tw, "%s\t%.1f%%\n", s.Label, s.Score*100)
		}
	}
	return tw.Flush()
}
