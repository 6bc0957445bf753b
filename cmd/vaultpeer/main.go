// Command vaultpeer boots one peer of the distributed pack/inventory
// transaction core: the Coordination Service, Transaction Engine, Peer
// Transport server, and recovery sweeper, following the teacher's
// cmd/relay main() shape (parse flags, build config, construct
// components, block on signal).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"

	"github.com/skirmishlabs/vault/events"
	"github.com/skirmishlabs/vault/internal/logging"
	"github.com/skirmishlabs/vault/peerrpc"
	"github.com/skirmishlabs/vault/storekeeper"
	"github.com/skirmishlabs/vault/txnengine"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		logging.New("main").WithField("err", err).Fatal("vaultpeer exited with error")
	}
}

func run(args []string) error {
	cfg, err := ParseConfig(args)
	if err != nil {
		return err
	}
	log := logging.New("main").WithField("peer", cfg.PeerID)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	store := storekeeper.New(rdb)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		return err
	}
	// stock:packs is one shared pool (spec.md §3); --stock.initial entries
	// sum into its single seed value rather than keying by template.
	var totalInitial int64
	for _, count := range cfg.InitialPack {
		totalInitial += int64(count)
	}
	if totalInitial > 0 {
		if err := store.InitStock(ctx, totalInitial); err != nil {
			log.WithField("err", err).Warn("stock already initialized, skipping seed")
		}
	}

	reg := cfg.buildRegistry()
	catalog := txnengine.NewCatalog(cfg.Templates)
	client := peerrpc.NewClient(cfg.PeerID)
	publisher := events.NewLogPublisher()

	engine := txnengine.New(cfg.PeerID, store, client, reg, catalog, cfg.Txn, publisher)

	server := peerrpc.NewServer(engine, reg)
	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: server}
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("peer transport listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithField("err", err).Error("peer transport server stopped unexpectedly")
		}
	}()

	recoverer := txnengine.NewRecoverer(engine)
	recoverer.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received, draining")

	// Stop the sweeper, then let in-flight inbound RPCs (including DECIDE
	// handling) finish for up to T_decide before exiting, grounded on the
	// teacher's StopWaiter-drained shutdown in arbnode/sequencer.go.
	// Outbound DECIDE sends this peer started as coordinator are not
	// tracked and are not waited for.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Txn.DecideTimeout)
	defer drainCancel()
	recoverer.Stop()
	_ = httpServer.Shutdown(drainCtx)

	return nil
}
