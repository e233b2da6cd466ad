// chatgated runs the chat quota service: it wires the configured usage store,
// model providers, and payment providers into a session controller and serves
// the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ineyio/chatgate"
	"github.com/ineyio/chatgate/httpapi"
	"github.com/ineyio/chatgate/meter"
	"github.com/ineyio/chatgate/payment/nowpayments"
	"github.com/ineyio/chatgate/payment/paypal"
	"github.com/ineyio/chatgate/payment/stripepay"
	"github.com/ineyio/chatgate/provider/gemini"
	"github.com/ineyio/chatgate/provider/huggingface"
	"github.com/ineyio/chatgate/provider/ollama"
	"github.com/ineyio/chatgate/provider/openaicompat"
	"github.com/ineyio/chatgate/store"
	storepostgres "github.com/ineyio/chatgate/store/postgres"
	storeredis "github.com/ineyio/chatgate/store/redis"
	storesqlite "github.com/ineyio/chatgate/store/sqlite"
)

func main() {
	configPath := flag.String("config", "chatgate.yaml", "path to the YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Optional; credentials referenced as ${VAR} in the config come from the
	// environment.
	_ = godotenv.Load()

	if err := run(*configPath, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := chatgate.LoadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cipher *chatgate.Cipher
	if cfg.EncryptionKey != "" {
		cipher, err = chatgate.NewCipher(cfg.EncryptionKey)
		if err != nil {
			return err
		}
	}

	usageStore, cleanup, err := buildStore(ctx, cfg, cipher)
	if err != nil {
		return err
	}
	defer cleanup()

	models, err := buildModelGateway(cfg, logger)
	if err != nil {
		return err
	}

	payments, err := buildEntitlementGateway(cfg, logger)
	if err != nil {
		return err
	}

	controller, err := chatgate.NewController(usageStore, models, payments,
		chatgate.WithLogger(logger),
		chatgate.WithMeter(meter.NewLogMeter(logger)),
		chatgate.WithFreeLimit(*cfg.FreeLimit),
		chatgate.WithWindow(time.Duration(cfg.Window)),
		chatgate.WithHistoryWindow(cfg.HistoryWindow),
		chatgate.WithPreamble(cfg.Preamble),
	)
	if err != nil {
		return err
	}

	api := httpapi.New(controller, cfg.ConfirmSecret, logger)
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "store", cfg.Store.Driver)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

func buildStore(ctx context.Context, cfg chatgate.Config, cipher *chatgate.Cipher) (chatgate.UsageStore, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemory(), func() {}, nil

	case "sqlite":
		var opts []storesqlite.Option
		if cipher != nil {
			opts = append(opts, storesqlite.WithCipher(cipher))
		}
		s, err := storesqlite.New(cfg.Store.DSN, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("chatgate: connect postgres: %w", err)
		}
		var opts []storepostgres.Option
		if cipher != nil {
			opts = append(opts, storepostgres.WithCipher(cipher))
		}
		s := storepostgres.New(pool, opts...)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, pool.Close, nil

	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Store.DSN})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("chatgate: connect redis: %w", err)
		}
		var opts []storeredis.Option
		if cipher != nil {
			opts = append(opts, storeredis.WithCipher(cipher))
		}
		return storeredis.New(client, opts...), func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("chatgate: unknown store driver %q", cfg.Store.Driver)
	}
}

func buildModelGateway(cfg chatgate.Config, logger *slog.Logger) (*chatgate.ModelGateway, error) {
	var providers []chatgate.Provider
	for _, m := range cfg.Models {
		switch m.Provider {
		case "ollama":
			opts := []ollama.Option{ollama.WithLogger(logger)}
			if m.BaseURL != "" {
				opts = append(opts, ollama.WithHost(m.BaseURL))
			}
			providers = append(providers, ollama.New(m.Model, opts...))

		case "openai":
			if m.BaseURL != "" {
				providers = append(providers, openaicompat.New(m.BaseURL, m.APIKey, m.Model, openaicompat.WithLogger(logger)))
			} else {
				providers = append(providers, openaicompat.NewOpenAI(m.APIKey, m.Model, openaicompat.WithLogger(logger)))
			}

		case "gemini":
			opts := []gemini.Option{gemini.WithLogger(logger)}
			if m.BaseURL != "" {
				opts = append(opts, gemini.WithBaseURL(m.BaseURL))
			}
			providers = append(providers, gemini.New(m.APIKey, m.Model, opts...))

		case "huggingface":
			var opts []huggingface.Option
			if m.BaseURL != "" {
				opts = append(opts, huggingface.WithBaseURL(m.BaseURL))
			}
			providers = append(providers, huggingface.New(m.APIKey, m.Model, opts...))

		default:
			return nil, fmt.Errorf("chatgate: unknown model provider %q", m.Provider)
		}
	}

	return chatgate.NewModelGateway(providers, cfg.DefaultModelProvider,
		chatgate.WithGatewayLogger(logger))
}

func buildEntitlementGateway(cfg chatgate.Config, logger *slog.Logger) (*chatgate.EntitlementGateway, error) {
	if len(cfg.Payments) == 0 {
		return nil, nil
	}

	var providers []chatgate.PaymentProvider
	for _, p := range cfg.Payments {
		switch p.Provider {
		case "stripe":
			prov, err := stripepay.New(p.APIKey, cfg.ChargeAmountCents, cfg.ChargeCurrency)
			if err != nil {
				return nil, err
			}
			providers = append(providers, prov)

		case "paypal":
			var opts []paypal.Option
			if p.BaseURL != "" {
				opts = append(opts, paypal.WithBaseURL(p.BaseURL))
			}
			prov, err := paypal.New(p.ClientID, p.Secret, cfg.ChargeAmountCents, cfg.ChargeCurrency, opts...)
			if err != nil {
				return nil, err
			}
			providers = append(providers, prov)

		case "nowpayments":
			var opts []nowpayments.Option
			if p.BaseURL != "" {
				opts = append(opts, nowpayments.WithBaseURL(p.BaseURL))
			}
			prov, err := nowpayments.New(p.APIKey, cfg.ChargeAmountCents, cfg.ChargeCurrency, opts...)
			if err != nil {
				return nil, err
			}
			providers = append(providers, prov)

		default:
			return nil, fmt.Errorf("chatgate: unknown payment provider %q", p.Provider)
		}
	}

	return chatgate.NewEntitlementGateway(providers, cfg.DefaultPaymentProvider,
		chatgate.WithEntitlementLogger(logger))
}
