package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"golang.org/x/sync/errgroup"

	pollclient "camarero/internal/client"
	"camarero/internal/config"
	"camarero/internal/domain"
	"camarero/internal/events"
	httpapi "camarero/internal/http"
	"camarero/internal/logger"
	mcpserver "camarero/internal/mcp"
	"camarero/internal/payment"
	"camarero/internal/repository"
	"camarero/internal/service"

	_ "camarero/docs"
)

func main() {
	app := &cli.App{
		Name:  "camarero",
		Usage: "order fulfillment core for kitchen, bar and waiter displays",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file", EnvVars: []string{"CAMARERO_CONFIG"}},
		},
		Commands: []*cli.Command{
			{Name: "serve", Usage: "run the REST API", Action: serve},
			{Name: "mcp", Usage: "serve MCP tools on stdio", Action: serveMCP},
			{Name: "payment-worker", Usage: "host the Temporal settlement workflow", Action: paymentWorker},
			{Name: "migrate", Usage: "apply SQL schema migrations", Action: migrate},
			{
				Name:   "watch",
				Usage:  "poll a station or pickup queue",
				Action: watch,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tenant", Required: true, EnvVars: []string{"CAMARERO_TENANT"}},
					&cli.StringFlag{Name: "role", Value: string(domain.RoleKitchenStaff)},
					&cli.StringFlag{Name: "station", Usage: "KDS station; empty shows the pickup queue for waiters"},
					&cli.StringFlag{Name: "actor", Usage: "user id sent with requests"},
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func load(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	// MCP занимает stdout, логи уходят в stderr
	return cfg, logger.New(os.Stderr, cfg.Log.Service, cfg.Log.Level), nil
}

// app собранные сервисы и то, что нужно закрыть при остановке
type app struct {
	store       repository.Store
	transitions *service.TransitionService
	queues      *service.QueueService
	intake      *service.OrderIntake
	closers     []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func openStore(ctx context.Context, cfg config.Storage) (repository.Store, error) {
	if cfg.Backend == repository.BackendMemory {
		return repository.NewMemory(), nil
	}
	return repository.OpenSQL(ctx, cfg.Backend, cfg.DSN)
}

func dialTemporal(cfg config.Temporal, log *slog.Logger) (client.Client, error) {
	return client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    tlog.NewStructuredLogger(log.With("component", "temporal")),
	})
}

func build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{}
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	var pub events.Publisher = events.Nop{}
	if cfg.RabbitMQ.URL != "" {
		amqpPub, err := events.NewAMQP(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			a.Close()
			return nil, err
		}
		pub = amqpPub
		a.closers = append(a.closers, amqpPub.Close)
	}

	var gate payment.Gate = payment.NewManualGate()
	if cfg.Temporal.HostPort != "" {
		tc, err := dialTemporal(cfg.Temporal, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("unable to create Temporal client: %w", err)
		}
		gate = payment.NewTemporalGate(tc, cfg.Temporal.TaskQueue)
		a.closers = append(a.closers, func() error { tc.Close(); return nil })
	}

	orders := service.NewOrderStore(store, pub, log)
	a.transitions = service.NewTransitionService(store, orders, gate, log)
	a.queues = service.NewQueueService(store)
	a.intake = service.NewOrderIntake(store, log)
	log.Info("services ready", "storage", cfg.Storage.Backend, "events", cfg.RabbitMQ.URL != "", "temporal", cfg.Temporal.HostPort != "")
	return a, nil
}

func serve(c *cli.Context) error {
	cfg, log, err := load(c)
	if err != nil {
		return err
	}
	a, err := build(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := httpapi.NewServer(a.transitions, a.queues, a.intake, log)
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: srv.Engine(),
	}

	g, ctx := errgroup.WithContext(c.Context)
	g.Go(func() error {
		log.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", "error", err)
		}
		return nil
	})
	return g.Wait()
}

func serveMCP(c *cli.Context) error {
	cfg, log, err := load(c)
	if err != nil {
		return err
	}
	a, err := build(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return mcpserver.NewServer(a.transitions, a.queues, log).Serve(c.Context)
}

func paymentWorker(c *cli.Context) error {
	cfg, log, err := load(c)
	if err != nil {
		return err
	}
	if cfg.Temporal.HostPort == "" {
		return errors.New("temporal.host_port is not configured")
	}
	limit, err := decimal.NewFromString(cfg.Temporal.CardLimit)
	if err != nil {
		return fmt.Errorf("temporal.card_limit: %w", err)
	}
	tc, err := dialTemporal(cfg.Temporal, log)
	if err != nil {
		return fmt.Errorf("unable to create Temporal client: %w", err)
	}
	defer tc.Close()

	w := payment.NewWorker(tc, cfg.Temporal.TaskQueue, payment.NewActivities(limit))
	log.Info("starting settlement worker", "task_queue", cfg.Temporal.TaskQueue, "limit", limit.String())
	return w.Run(worker.InterruptCh())
}

func migrate(c *cli.Context) error {
	cfg, log, err := load(c)
	if err != nil {
		return err
	}
	if cfg.Storage.Backend == repository.BackendMemory {
		return errors.New("memory storage has no schema")
	}
	store, err := repository.OpenSQL(c.Context, cfg.Storage.Backend, cfg.Storage.DSN)
	if err != nil {
		return err
	}
	defer store.Close()
	v, err := store.SchemaVersion(c.Context)
	if err != nil {
		return err
	}
	log.Info("schema up to date", "backend", store.Backend(), "version", v, "sqlite_build", repository.BuildMode)
	return nil
}

// watch опрашивает очередь; события RabbitMQ, если настроены, только ускоряют обновление
func watch(c *cli.Context) error {
	cfg, log, err := load(c)
	if err != nil {
		return err
	}
	actor := domain.Actor{
		TenantID: c.String("tenant"),
		Role:     domain.Role(c.String("role")),
		Station:  c.String("station"),
		UserID:   c.String("actor"),
	}
	api := pollclient.New(cfg.Polling.BaseURL, actor)
	station := actor.StationDestination()

	refresh := make(chan struct{}, 1)
	g, ctx := errgroup.WithContext(c.Context)
	if cfg.RabbitMQ.URL != "" {
		g.Go(func() error {
			return events.Subscribe(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, func(ev events.StatusChanged) {
				if ev.TenantID != actor.TenantID {
					return
				}
				select {
				case refresh <- struct{}{}:
				default:
				}
			})
		})
	}
	show := func(ctx context.Context) error {
		var (
			items []service.QueueItem
			err   error
		)
		if station != "" {
			items, err = api.KitchenQueue(ctx, station)
		} else {
			items, err = api.PickupQueue(ctx)
		}
		if err != nil {
			log.Warn("queue refresh failed", "action", "watch", "error", err)
			return nil
		}
		fmt.Printf("--- %s %d item(s)\n", time.Now().Format(time.TimeOnly), len(items))
		for _, it := range items {
			fmt.Printf("%s  %-10s %-9s x%d %s\n", it.OrderNumber, it.TableIdentifier, it.Status, it.Quantity, it.ItemNameSnapshot)
		}
		return nil
	}
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-refresh:
				if err := show(ctx); err != nil {
					return err
				}
			}
		}
	})
	g.Go(func() error {
		return api.Poll(ctx, cfg.Polling.Interval, show)
	})
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
