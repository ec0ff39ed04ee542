package commands

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dnfs-project/dnfs/internal/logger"
	"github.com/dnfs-project/dnfs/internal/netutil"
	"github.com/dnfs-project/dnfs/pkg/config"
	"github.com/dnfs-project/dnfs/pkg/metrics"
	metricsprom "github.com/dnfs-project/dnfs/pkg/metrics/prometheus"
	"github.com/dnfs-project/dnfs/pkg/nameserver"
	"github.com/dnfs-project/dnfs/pkg/nameserver/store"
)

// acceptPollInterval is how often the client/SS accept loops wake to check
// for a shutdown signal, mirroring the storage server's configurable value
// (spec.md §5) without needing a dedicated config field on this role.
const acceptPollInterval = 500 * time.Millisecond

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "run the name server",
	RunE:  runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadNameServerConfig(GetConfigFile())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := logger.With("role", "name-server")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	db, err := store.Open(filepath.Join(cfg.DataDir, "ns.db"))
	if err != nil {
		return fmt.Errorf("open roster store: %w", err)
	}
	defer db.Close()

	ring := nameserver.NewRing(db)
	if err := ring.LoadFromStore(); err != nil {
		return fmt.Errorf("load ss ring: %w", err)
	}
	requests := nameserver.NewRequestList(db)

	users, err := nameserver.NewUserRegistry(filepath.Join(cfg.DataDir, "users.db"))
	if err != nil {
		return fmt.Errorf("open user registry: %w", err)
	}

	access := nameserver.NewAccessTable(filepath.Join(cfg.DataDir, "permission_db"), cfg.AccessTableCapacity, cfg.TableMaxLoadFactor)
	if err := access.LoadAll(); err != nil {
		return fmt.Errorf("load access table: %w", err)
	}

	files := nameserver.NewFileMap(cfg.FileMapCapacity, cfg.TableMaxLoadFactor)
	cache := nameserver.NewResolutionCache(cfg.ResolutionCacheSize)

	var nsMetrics *metrics.NameServerMetrics
	if cfg.Metrics.Enabled {
		reg := metrics.InitRegistry()
		nsMetrics = metrics.NewNameServerMetrics(metricsprom.NewNameServerRecorder(reg))
	} else {
		nsMetrics = metrics.NewNameServerMetrics(nil)
	}

	dir := nameserver.NewDirectory(users, access, files, ring, cache, requests, log, nsMetrics)
	srv := nameserver.NewServer(dir, log, acceptPollInterval, cfg.HeartbeatTimeout)

	clientLn, err := net.Listen("tcp", cfg.ClientListenAddr)
	if err != nil {
		return fmt.Errorf("listen client addr %s: %w", cfg.ClientListenAddr, err)
	}
	ssLn, err := net.Listen("tcp", cfg.SSListenAddr)
	if err != nil {
		return fmt.Errorf("listen ss addr %s: %w", cfg.SSListenAddr, err)
	}
	if err := netutil.SetAcceptTimeout(clientLn, acceptPollInterval); err != nil {
		log.Warn("could not set accept timeout on client listener", "error", err)
	}
	if err := netutil.SetAcceptTimeout(ssLn, acceptPollInterval); err != nil {
		log.Warn("could not set accept timeout on ss listener", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- srv.ServeClients(ctx, clientLn) }()
	go func() { errCh <- srv.ServeStorageServers(ctx, ssLn) }()
	go srv.RunHeartbeatMonitor(ctx)

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "error", err)
			}
		}()
		log.Info("metrics endpoint listening", "port", cfg.Metrics.Port)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info("name server started", "client_addr", cfg.ClientListenAddr, "ss_addr", cfg.SSListenAddr)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Error("server loop exited with error", "error", err)
		}
	}

	cancel()
	_ = clientLn.Close()
	_ = ssLn.Close()

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	log.Info("name server stopped")
	return nil
}
