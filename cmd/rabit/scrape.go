package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/edmondie/rabit/pkg/request"
	"github.com/edmondie/rabit/pkg/stream"
	"github.com/spf13/cobra"
)

func newScrapeCmd(cfg *Config) *cobra.Command {
	var req request.ScrapeRequest

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape and write its events to stdout",
		Example: `  rabit scrape --country germany --degree msc --fields id,programName,university --range 1,2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := setupRuntime(ctx, *cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			return rt.driver.Run(ctx, req, stream.NewSSEWriter(cmd.OutOrStdout()))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.Country, "country", "", "country to search, e.g. germany")
	flags.StringVar(&req.Degree, "degree", "", "degree: msc, bsc or phd")
	flags.StringSliceVar(&req.Fields, "fields", nil, "fields to return")
	flags.IntSliceVar(&req.Range, "range", nil, "page range: start[,end]")
	return cmd
}
