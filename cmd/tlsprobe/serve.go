package main

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/mel2oo/tlsprobe/server"
	"github.com/mel2oo/tlsprobe/session"
)

func newServeCommand(a *app) *cobra.Command {
	var httpAddr, probeHost, baseURL string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP front end that hands out probe endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("http-addr") {
				a.cfg.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("probe-host") {
				a.cfg.ProbeHost = probeHost
			}
			if cmd.Flags().Changed("base-url") {
				a.cfg.BaseURL = baseURL
			}

			prober, err := a.newProber()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			registry := session.NewRegistry(a.cfg.SessionTTL, session.WithLogger(a.logger))
			err = server.New(a.cfg, registry, prober, a.logger).ListenAndServe(ctx)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "address of the HTTP front end")
	cmd.Flags().StringVar(&probeHost, "probe-host", "", "host probe listeners bind to")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "base URL used in report links")
	return cmd
}
