package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mel2oo/tlsprobe/gnet"
	"github.com/mel2oo/tlsprobe/gnet/tls/tlstest"
)

type sendOptions struct {
	sni      []string
	alpn     []string
	fragment int
	timeout  time.Duration
}

func newSendCommand(a *app) *cobra.Command {
	var opts sendOptions

	cmd := &cobra.Command{
		Use:   "send <host:port>",
		Short: "Send a browser-like ClientHello to a probe endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			n, err := sendHello(ctx, args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "sent %d bytes to %s\n", n, args[0])
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&opts.sni, "sni", nil, "server names to offer (default example.com)")
	cmd.Flags().StringSliceVar(&opts.alpn, "alpn", nil, "ALPN protocols to offer (default h2,http/1.1)")
	cmd.Flags().IntVar(&opts.fragment, "fragment", 0, "split the handshake into records of at most this many bytes")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "connect and write timeout")
	return cmd
}

// The example hello with its SNI and ALPN replaced by what was asked for.
func buildHello(opts sendOptions) (tlstest.ClientHello, error) {
	h := tlstest.Example()
	if _, err := rand.Read(h.Random[:]); err != nil {
		return tlstest.ClientHello{}, err
	}

	for i, ext := range h.Extensions {
		switch ext.Type {
		case gnet.ServerNameExtensionType:
			if len(opts.sni) > 0 {
				h.Extensions[i] = tlstest.SNI(opts.sni...)
			}
		case gnet.ALPNExtensionType:
			if len(opts.alpn) > 0 {
				h.Extensions[i] = tlstest.ALPN(opts.alpn...)
			}
		}
	}
	return h, nil
}

// Connects to addr, writes the ClientHello and closes. Returns the number of
// bytes written.
func sendHello(ctx context.Context, addr string, opts sendOptions) (int, error) {
	h, err := buildHello(opts)
	if err != nil {
		return 0, err
	}
	payload := tlstest.Records(22, h.Handshake(), opts.fragment)

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to connect to %s", addr)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}
	n, err := conn.Write(payload)
	if err != nil {
		return n, errors.Wrap(err, "failed to send ClientHello")
	}
	return n, nil
}
