package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mel2oo/tlsprobe/config"
	"github.com/mel2oo/tlsprobe/gid"
	gtls "github.com/mel2oo/tlsprobe/gnet/tls"
	"github.com/mel2oo/tlsprobe/logging"
	"github.com/mel2oo/tlsprobe/probe"
	"github.com/mel2oo/tlsprobe/report"
	"github.com/mel2oo/tlsprobe/session"
)

// HTTP front end: allocates probe endpoints and serves their reports.
type Server struct {
	cfg      config.Config
	registry *session.Registry
	prober   *probe.Prober
	logger   *zap.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

func New(cfg config.Config, registry *session.Registry, prober *probe.Prober, logger *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		prober:   prober,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Reports carry nothing but what the client sent to the probe.
				return true
			},
		},
		mux: http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /{$}", s.handleAllocate)
	s.mux.HandleFunc("GET /report/{id}", s.handleReport)
	s.mux.HandleFunc("GET /ws/report/{id}", s.handleReportWebsocket)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serves on cfg.HTTPAddr and expires unclaimed probes until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go s.registry.Run(ctx)

	errC := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.cfg.HTTPAddr))
		errC <- srv.ListenAndServe()
	}()

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type allocation struct {
	ID        gid.ProbeID `json:"id"`
	Port      int         `json:"port"`
	ReportURL string      `json:"report_url"`
}

func wantsJSON(r *http.Request) bool {
	return r.URL.Query().Get("format") == "json"
}

func (s *Server) baseURL(r *http.Request) string {
	if s.cfg.BaseURL != "" {
		return s.cfg.BaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	p, err := s.registry.Allocate(s.cfg.ProbeHost)
	if err != nil {
		s.logger.Error("failed to allocate probe", zap.Error(err))
		http.Error(w, "could not allocate a probe port", http.StatusServiceUnavailable)
		return
	}

	a := allocation{
		ID:        p.ID,
		Port:      p.Port(),
		ReportURL: fmt.Sprintf("%s/report/%s", s.baseURL(r), p.ID),
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, a)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "port: %d, URL: %s\n", a.Port, a.ReportURL)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"pending_probes": s.registry.Len(),
	})
}

// Looks up and removes the probe named in the request path.
func (s *Server) takeProbe(r *http.Request) (*session.Probe, error) {
	id, err := gid.ParseProbeID(r.PathValue("id"))
	if err != nil {
		return nil, session.ErrUnknownProbe
	}
	return s.registry.Take(id)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	p, err := s.takeProbe(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	rep, err := s.runProbe(r.Context(), p)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, rep)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := rep.WriteText(w); err != nil {
		s.logger.Warn("failed to write report", zap.Error(err))
	}
}

// Waits for one client on the probe's listener and reads its ClientHello.
// Closes the listener.
func (s *Server) runProbe(ctx context.Context, p *session.Probe) (report.Report, error) {
	defer p.Listener.Close()
	logger := logging.ForProbe(s.logger, p.ID, "")

	conn, err := s.accept(ctx, p.Listener)
	if err != nil {
		logger.Info("no client connected", zap.Error(err))
		return report.Report{}, err
	}
	defer conn.Close()

	logger = logger.With(zap.String("remote_addr", conn.RemoteAddr().String()))
	hello, err := s.prober.Probe(ctx, conn)
	if err != nil {
		logger.Info("probe failed", zap.Stringer("kind", gtls.Classify(err)), zap.Error(err))
		return report.Report{}, err
	}

	logger.Info("probe complete", zap.Strings("sni", hello.ServerNames()), zap.Stringer("version", hello.Version))
	return report.New(hello), nil
}

type deadlineListener interface {
	SetDeadline(time.Time) error
}

func (s *Server) accept(ctx context.Context, l net.Listener) (net.Conn, error) {
	if dl, ok := l.(deadlineListener); ok {
		if err := dl.SetDeadline(time.Now().Add(s.cfg.AcceptTimeout)); err != nil {
			return nil, err
		}
	}

	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	conn, err := l.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "accept canceled")
		}
		return nil, errors.Wrap(err, "failed to accept probe connection")
	}
	return conn, nil
}

type failure struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusFor(kind gtls.FailureKind) int {
	switch kind {
	case gtls.FailureMalformed, gtls.FailureUnexpectedMessage, gtls.FailureEndOfStream:
		return http.StatusUnprocessableEntity
	case gtls.FailureTimeout:
		return http.StatusGatewayTimeout
	case gtls.FailureInternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	kind := gtls.Classify(err)
	status := statusFor(kind)

	if wantsJSON(r) {
		writeJSON(w, status, failure{Error: kind.String(), Message: kind.Message()})
		return
	}
	http.Error(w, kind.Message(), status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
