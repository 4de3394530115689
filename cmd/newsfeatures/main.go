package main

import (
	"fmt"
	"os"

	"nse-newsfeatures/internal/cli"
	apperrors "nse-newsfeatures/internal/errors"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		switch {
		case apperrors.Is(err, apperrors.ErrRawFileMissing):
			fmt.Fprintln(os.Stderr, "Run 'newsfeatures fetch' for this date first.")
		case apperrors.Is(err, apperrors.ErrProcessedFileMissing):
			fmt.Fprintln(os.Stderr, "Run 'newsfeatures nlp' for this date first.")
		case apperrors.IsFatal(err):
			fmt.Fprintln(os.Stderr, "Check reference.symbols_csv in config.toml.")
		}
		os.Exit(1)
	}
}
