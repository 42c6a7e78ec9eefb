package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mel2oo/tlsprobe/gnet"
	gtls "github.com/mel2oo/tlsprobe/gnet/tls"
	"github.com/mel2oo/tlsprobe/pcap"
	"github.com/mel2oo/tlsprobe/report"
	"github.com/mel2oo/tlsprobe/sets"
)

type pcapOptions struct {
	output   outputOptions
	sni      []string
	failures bool
}

func newPcapCommand(a *app) *cobra.Command {
	var opts pcapOptions

	cmd := &cobra.Command{
		Use:   "pcap <file>",
		Short: "Report every ClientHello in a pcap or pcapng capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parser, err := pcap.NewTrafficParser(
				pcap.WithReadName(args[0]),
				pcap.WithLogger(a.logger),
			)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			traffic, err := parser.Parse(ctx,
				gtls.NewTLSClientParserFactory(gtls.WithMaxHandshakeLength(a.cfg.MaxHandshakeLength)))
			if err != nil {
				return err
			}

			s, err := writeCapture(cmd.OutOrStdout(), traffic, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d ClientHellos, %d undecodable, server names: %v\n",
				s.hellos, s.failures, sets.Sorted(s.serverNames))
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.output.json, "json", false, "print one JSON object per line")
	cmd.Flags().BoolVar(&opts.output.raw, "raw", false, "include the decoded structure verbatim")
	cmd.Flags().StringSliceVar(&opts.sni, "sni", nil, "only report ClientHellos offering one of these server names")
	cmd.Flags().BoolVar(&opts.failures, "failures", false, "also report streams that could not be decoded")
	return cmd
}

// One line of JSON output.
type capturedHello struct {
	Src        string         `json:"src"`
	Dst        string         `json:"dst"`
	ObservedAt time.Time      `json:"observed_at"`
	Report     *report.Report `json:"report,omitempty"`
	Error      string         `json:"error,omitempty"`
	Message    string         `json:"message,omitempty"`
}

type captureSummary struct {
	hellos      int
	failures    int
	serverNames sets.Set[string]
}

func endpoints(t gnet.NetTraffic) (src, dst string) {
	return fmt.Sprintf("%s:%d", t.SrcIP, t.SrcPort), fmt.Sprintf("%s:%d", t.DstIP, t.DstPort)
}

// Drains traffic, writing what passes the filter. Failures carry no server
// name, so a filter hides them.
func writeCapture(w io.Writer, traffic <-chan gnet.NetTraffic, opts pcapOptions) (captureSummary, error) {
	filter := sets.NewSet(opts.sni...)
	s := captureSummary{serverNames: sets.NewSet[string]()}

	var werr error
	for t := range traffic {
		if werr != nil {
			// Keep draining so the replay can finish.
			continue
		}

		src, dst := endpoints(t)
		line := capturedHello{Src: src, Dst: dst, ObservedAt: t.ObservationTime}

		switch c := t.Content.(type) {
		case gnet.TLSClientHello:
			names := c.ServerNames()
			if !filter.IsEmpty() && !filter.ContainsAny(names...) {
				continue
			}
			s.hellos++
			s.serverNames.Insert(names...)

			r := report.New(c)
			if !opts.output.raw {
				r.Raw = ""
			}
			line.Report = &r
		case gnet.TLSDecodeFailure:
			if !filter.IsEmpty() {
				continue
			}
			s.failures++
			if !opts.failures {
				continue
			}
			kind := gtls.Classify(c.Err)
			line.Error = kind.String()
			line.Message = kind.Message()
		default:
			continue
		}

		werr = writeCaptured(w, line, opts.output)
	}
	return s, werr
}

func writeCaptured(w io.Writer, line capturedHello, out outputOptions) error {
	if out.json {
		return json.NewEncoder(w).Encode(line)
	}

	if _, err := fmt.Fprintf(w, "== %s -> %s at %s\n", line.Src, line.Dst, line.ObservedAt.Format(time.RFC3339Nano)); err != nil {
		return err
	}
	if line.Report == nil {
		_, err := fmt.Fprintf(w, "%s\n\n", line.Message)
		return err
	}
	if err := line.Report.WriteText(w); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}
