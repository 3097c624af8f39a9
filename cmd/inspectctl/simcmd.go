package main

import (
	"context"
	"crypto/tls"
	"flag"
	"io"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/inspectctl/internal/gateway/gatewaysim"
	"github.com/danmuck/inspectctl/internal/logging"
	"github.com/danmuck/inspectctl/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

func runGatewaySim(args []string) error {
	fs := flag.NewFlagSet("gateway-sim", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	listen := fs.String("listen", "127.0.0.1:27050", "listen address")
	fixtures := fs.String("fixtures", "", "JSON file mapping asset id to item record")
	account := fs.String("account", "", "only accept this account")
	password := fs.String("password", "", "password for -account")
	synthesize := fs.Bool("synthesize", false, "answer unknown assets with an id-only record")
	delay := fs.Duration("delay", 200*time.Millisecond, "delay before each answer")
	tlsCert := fs.String("tls-cert", "", "serve TLS with this certificate")
	tlsKey := fs.String("tls-key", "", "private key for -tls-cert")
	clientCA := fs.String("tls-client-ca", "", "require client certificates signed by this CA")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logging.ConfigureRuntime()
	cfg := gatewaysim.Config{AnswerDelay: *delay, Synthesize: *synthesize}
	if *account != "" {
		cfg.Accounts = map[string]string{*account: *password}
	}
	sim := gatewaysim.New(cfg)
	if *fixtures != "" {
		n, err := sim.LoadFixtures(*fixtures)
		if err != nil {
			return err
		}
		log.Info().Int("items", n).Str("path", *fixtures).Msg("inspectctl.gateway-sim fixtures loaded")
	}

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		return err
	}
	if *tlsCert != "" || *tlsKey != "" {
		transport := session.Config{TLS: session.TLSConfig{
			Enabled:  true,
			Mutual:   *clientCA != "",
			CAFile:   *clientCA,
			CertFile: *tlsCert,
			KeyFile:  *tlsKey,
		}}.WithDefaults()
		if err := transport.ValidateServerTransport(); err != nil {
			_ = ln.Close()
			return err
		}
		tlsCfg, err := transport.ServerTLSConfig()
		if err != nil {
			_ = ln.Close()
			return err
		}
		ln = tls.NewListener(ln, tlsCfg)
		log.Info().Bool("mutual", transport.TLS.Mutual).Msg("inspectctl.gateway-sim tls enabled")
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return sim.Serve(ctx, ln)
}
