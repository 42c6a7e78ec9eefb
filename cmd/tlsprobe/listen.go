package main

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	gtls "github.com/mel2oo/tlsprobe/gnet/tls"
	"github.com/mel2oo/tlsprobe/probe"
	"github.com/mel2oo/tlsprobe/report"
)

type outputOptions struct {
	json bool
	raw  bool
}

func (o outputOptions) write(w io.Writer, r report.Report) error {
	if !o.raw {
		r.Raw = ""
	}
	if o.json {
		return r.WriteJSON(w)
	}
	return r.WriteText(w)
}

func newListenCommand(a *app) *cobra.Command {
	var addr string
	var out outputOptions

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Probe a single client connection and print its ClientHello",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prober, err := a.newProber()
			if err != nil {
				return err
			}

			l, err := net.Listen("tcp", addr)
			if err != nil {
				return errors.Wrap(err, "failed to listen")
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "listening on %s\n", l.Addr())

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			return listenOnce(ctx, l, prober, a.logger, cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:0", "address to accept the client on")
	cmd.Flags().BoolVar(&out.json, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&out.raw, "raw", false, "include the decoded structure verbatim")
	return cmd
}

// Accepts one client on l, probes it, and writes the report to w. Closes l.
func listenOnce(ctx context.Context, l net.Listener, prober *probe.Prober, logger *zap.Logger,
	w io.Writer, out outputOptions) error {
	defer l.Close()
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	conn, err := l.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "accept canceled")
		}
		return errors.Wrap(err, "failed to accept")
	}
	defer conn.Close()

	hello, err := prober.Probe(ctx, conn)
	if err != nil {
		kind := gtls.Classify(err)
		logger.Info("probe failed",
			zap.String("remote_addr", conn.RemoteAddr().String()),
			zap.Stringer("kind", kind), zap.Error(err))
		return errors.Wrap(err, kind.Message())
	}

	return out.write(w, report.New(hello))
}
