package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/srcdstools/srcwatch/pkg/handler"
	"github.com/srcdstools/srcwatch/pkg/logparse"
	"github.com/srcdstools/srcwatch/pkg/logsock"
	"github.com/srcdstools/srcwatch/pkg/rcon"
)

// ErrAuthFailed indicates the game server rejected the RCON password.
var ErrAuthFailed = errors.New("rcon authentication failed")

// Service is the daemon: one RCON session, one log socket, and the
// configured handlers in between.
type Service struct {
	config  Config
	metrics *logsock.Metrics
}

// New creates a service from a validated config. If metrics are enabled
// the Prometheus collectors are registered here, once.
func New(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Service{config: config}
	if config.Metrics.Enabled {
		s.metrics = logsock.NewMetrics()
	}
	return s, nil
}

// Run connects to the game server, points its log stream at our socket,
// and processes records until ctx is cancelled or a handler stops the
// socket. It blocks for the life of the daemon.
func (s *Service) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.RCON.Host, strconv.Itoa(s.config.RCON.Port))
	timeout := time.Duration(s.config.RCON.TimeoutSeconds) * time.Second

	log.Printf("Connecting to game server at %s", addr)
	client, err := rcon.Dial(addr, rcon.WithTimeout(timeout))
	if err != nil {
		return err
	}
	defer client.Close()

	ok, err := client.Authenticate(s.config.RCON.Password)
	if err != nil {
		return fmt.Errorf("rcon authentication: %w", err)
	}
	if !ok {
		return ErrAuthFailed
	}
	log.Printf("Authenticated")

	sock := logsock.New(fmt.Sprintf(":%d", s.config.Log.Port))
	if s.metrics != nil {
		sock.SetMetrics(s.metrics)
	}

	// Handlers must be in place before the first record can arrive.
	for _, name := range s.config.Handlers.Enabled {
		h, err := handler.Build(name, handler.Deps{RCON: client}, s.config.HandlerOptions(name))
		if err != nil {
			return err
		}
		sock.Register(safeHandler(name, h))
		log.Printf("Handler %s attached", name)
	}

	var metricsServer *http.Server
	if s.config.Metrics.Enabled {
		metricsServer = s.serveMetrics()
		defer metricsServer.Close()
	}

	done := make(chan error, 1)
	go func() { done <- sock.Run(ctx) }()

	// Wait for the bind so logaddress_add carries the real port even when
	// the config asked for an ephemeral one.
	select {
	case <-sock.Ready():
	case <-ctx.Done():
		sock.Stop()
		return <-done
	}

	// Ready also fires when Run gave up; never point the server at a port
	// nobody is listening on.
	if !sock.Bound() {
		return <-done
	}

	target, err := s.logTarget(client, sock)
	if err != nil {
		sock.Stop()
		<-done
		return err
	}

	log.Printf("Directing server log stream to %s", target)
	if err := s.enableLogging(client, target); err != nil {
		sock.Stop()
		<-done
		return err
	}

	err = <-done

	// Best effort; the session may already be gone.
	if _, cmdErr := client.ExecCommand("logaddress_del " + target); cmdErr != nil {
		log.Printf("Failed to remove log address: %v", cmdErr)
	}

	return err
}

// safeHandler isolates a handler's panics: the dispatcher propagates
// them, and one buggy handler must not kill the receive loop or rob the
// others of their records and end-of-stream sentinel.
func safeHandler(name string, h func(logparse.Record)) func(logparse.Record) {
	return func(rec logparse.Record) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Handler %s panicked: %v", name, r)
			}
		}()
		h(rec)
	}
}

// logTarget computes the ip:port the game server should stream logs to:
// the address it already reaches us at on the RCON connection, plus the
// log socket's bound port.
func (s *Service) logTarget(client *rcon.Client, sock *logsock.Socket) (string, error) {
	host, _, err := net.SplitHostPort(client.LocalAddr().String())
	if err != nil {
		return "", fmt.Errorf("failed to resolve local address: %w", err)
	}
	_, port, err := net.SplitHostPort(sock.Addr())
	if err != nil {
		return "", fmt.Errorf("failed to resolve log socket address: %w", err)
	}
	return net.JoinHostPort(host, port), nil
}

// enableLogging issues the console commands that point the server's log
// stream at us.
func (s *Service) enableLogging(client *rcon.Client, target string) error {
	for _, cmd := range []string{
		"logaddress_delall",
		"logaddress_add " + target,
		"log on",
	} {
		if _, err := client.ExecCommand(cmd); err != nil {
			return fmt.Errorf("command %q failed: %w", cmd, err)
		}
	}
	return nil
}

// serveMetrics starts the Prometheus scrape endpoint.
func (s *Service) serveMetrics() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: s.config.Metrics.Listen, Handler: mux}
	go func() {
		log.Printf("Metrics listening on http://%s/metrics", s.config.Metrics.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()
	return srv
}
