package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	apperrors "nse-newsfeatures/internal/errors"
	"nse-newsfeatures/internal/models"
	"nse-newsfeatures/internal/pipeline"
	"nse-newsfeatures/internal/store"
	"nse-newsfeatures/pkg/utils"
)

// addPipelineCommands adds the stage commands.
func addPipelineCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newFetchCmd(app))
	rootCmd.AddCommand(newNLPCmd(app))
	rootCmd.AddCommand(newFeaturesCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
}

func addDateFlag(cmd *cobra.Command) {
	cmd.Flags().String("date", "today", "run date as YYYY-MM-DD or 'today' (configured timezone)")
}

func addLookbackFlag(cmd *cobra.Command) {
	cmd.Flags().Int("lookback", 0, "price lookback in days (default: features.lookback_days)")
}

func (a *App) runDay(cmd *cobra.Command) (string, error) {
	value, _ := cmd.Flags().GetString("date")
	day, err := utils.ResolveDay(value, a.Config.Location())
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, apperrors.ErrInvalidDate)
	}
	return day, nil
}

// commandContext is cancelled on SIGINT/SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// withStore runs fn with an open store and closes it afterwards.
func (a *App) withStore(fn func(db *store.SQLiteStore) error) error {
	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func newFetchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Collect raw news into data/raw/<date>.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := app.runDay(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return app.withStore(func(db *store.SQLiteStore) error {
				res, err := app.fetchStage(db).Run(ctx, day)
				if err != nil {
					return err
				}
				printFetch(NewOutput(cmd), res)
				return nil
			})
		},
	}
	addDateFlag(cmd)
	return cmd
}

func newNLPCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nlp",
		Short: "Tag raw news with symbols, events and sentiment",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := app.runDay(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return app.withStore(func(db *store.SQLiteStore) error {
				stage, err := app.nlpStage(db)
				if err != nil {
					return err
				}
				res, err := stage.Run(ctx, day)
				if err != nil {
					return err
				}
				printNLP(NewOutput(cmd), res)
				return nil
			})
		},
	}
	addDateFlag(cmd)
	return cmd
}

func newFeaturesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Join news aggregates with as-of price indicators",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := app.runDay(cmd)
			if err != nil {
				return err
			}
			lookback, _ := cmd.Flags().GetInt("lookback")
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return app.withStore(func(db *store.SQLiteStore) error {
				stage, err := app.featureStage(db)
				if err != nil {
					return err
				}
				res, err := stage.Run(ctx, day, lookback)
				if err != nil {
					return err
				}
				return printFeatures(ctx, NewOutput(cmd), db, res)
			})
		},
	}
	addDateFlag(cmd)
	addLookbackFlag(cmd)
	return cmd
}

func newRunCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run fetch, nlp and features for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := app.runDay(cmd)
			if err != nil {
				return err
			}
			lookback, _ := cmd.Flags().GetInt("lookback")
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return app.withStore(func(db *store.SQLiteStore) error {
				nlpStage, err := app.nlpStage(db)
				if err != nil {
					return err
				}
				featureStage, err := app.featureStage(db)
				if err != nil {
					return err
				}
				p := &pipeline.Pipeline{
					Fetch:    app.fetchStage(db),
					NLP:      nlpStage,
					Features: featureStage,
				}

				res, err := p.Run(ctx, day, lookback)
				if err != nil {
					return err
				}

				output := NewOutput(cmd)
				if output.IsJSON() {
					return output.JSON(res)
				}
				printFetch(output, res.Fetch)
				printNLP(output, res.NLP)
				return printFeatures(ctx, output, db, res.Features)
			})
		},
	}
	addDateFlag(cmd)
	addLookbackFlag(cmd)
	return cmd
}

func printFetch(output *Output, res pipeline.FetchResult) {
	if output.IsJSON() {
		output.JSON(res)
		return
	}
	output.Success("✓ Fetched %d items for %s (%d unique, %d new)", res.Fetched, res.Day, res.Unique, res.Inserted)
	output.Dim("  %s", res.Path)
}

func printNLP(output *Output, res pipeline.NLPResult) {
	if output.IsJSON() {
		output.JSON(res)
		return
	}
	output.Success("✓ Processed %d items for %s (%d inserted, %d updated)", res.Processed, res.Day, res.Inserted, res.Updated)
	if res.Unmapped > 0 {
		output.Warning("  %d items mention no known symbol", res.Unmapped)
	}
	output.Dim("  %s", res.JSONPath)
	output.Dim("  %s", res.CSVPath)
}

func printFeatures(ctx context.Context, output *Output, db *store.SQLiteStore, res pipeline.FeatureResult) error {
	if output.IsJSON() {
		return output.JSON(res)
	}
	if res.Rows == 0 {
		output.Warning("No news features for %s", res.Day)
		return nil
	}

	output.Success("✓ Built %d feature rows for %s (%d with prices)", res.Rows, res.Day, res.WithPrices)
	output.Dim("  %s", res.Path)
	output.Println()

	rows, err := db.GetFeatureRows(ctx, res.Day)
	if err != nil {
		return err
	}
	renderFeatureTable(output, rows)
	return nil
}

func renderFeatureTable(output *Output, rows []models.FeatureRow) {
	table := NewTable(output, "SYMBOL", "NEWS", "SENT", "POS", "NEG", "CLOSE", "RSI", "1D")
	for _, row := range rows {
		n := row.News
		sent := "-"
		if n.SentMean != nil {
			sent = output.Sentiment(*n.SentMean, fmt.Sprintf("%+.2f", *n.SentMean))
		}

		last, rsi, ret := "-", "-", "-"
		if p := row.Price; p != nil {
			last = utils.FormatOptional(p.Close, utils.FormatIndianCurrency)
			rsi = utils.FormatOptional(p.RSI, func(v float64) string { return fmt.Sprintf("%.1f", v) })
			if p.Ret1D != nil {
				ret = output.Sentiment(*p.Ret1D, utils.FormatPercent(*p.Ret1D*100))
			}
		}

		table.AddRow(
			row.Symbol,
			utils.FormatCount(int64(n.NewsCount)),
			sent,
			utils.FormatRatio(n.PosRatio),
			utils.FormatRatio(n.NegRatio),
			last, rsi, ret,
		)
	}
	table.Render()
}
