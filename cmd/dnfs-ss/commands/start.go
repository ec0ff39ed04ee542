package commands

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dnfs-project/dnfs/internal/logger"
	"github.com/dnfs-project/dnfs/internal/netutil"
	"github.com/dnfs-project/dnfs/pkg/config"
	"github.com/dnfs-project/dnfs/pkg/metrics"
	metricsprom "github.com/dnfs-project/dnfs/pkg/metrics/prometheus"
	"github.com/dnfs-project/dnfs/pkg/storageserver"
)

var startCmd = &cobra.Command{
	Use:   "start <ns_ip> <ns_port> <my_ip> <my_client_port> <my_repl_port>",
	Short: "run the storage server",
	Args:  cobra.ExactArgs(5),
	RunE:  runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	nsIP, nsPort, myIP, myClientPort, myReplPort := args[0], args[1], args[2], args[3], args[4]

	clientPortNum, err := strconv.ParseUint(myClientPort, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid my_client_port %q: %w", myClientPort, err)
	}
	replPortNum, err := strconv.ParseUint(myReplPort, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid my_repl_port %q: %w", myReplPort, err)
	}

	cfg, err := config.LoadStorageServerConfig(GetConfigFile())
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
	log := logger.With("role", "storage-server")

	st, err := storageserver.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if err := st.Load(); err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	backup := &storageserver.BackupConfig{}

	var ssMetrics *metrics.StorageServerMetrics
	if cfg.Metrics.Enabled {
		reg := metrics.InitRegistry()
		ssMetrics = metrics.NewStorageServerMetrics(metricsprom.NewStorageServerRecorder(reg))
	} else {
		ssMetrics = metrics.NewStorageServerMetrics(nil)
	}

	repl := storageserver.NewReplicationWorker(st, backup.Get, log, cfg.ReplicationMaxRetries, cfg.ReplicationQueueSize, cfg.ReplicationRetryBackoff)
	repl.SetCallbacks(ssMetrics.RecordReplicationFailure, ssMetrics.SetReplicationQueueDepth)

	srv := storageserver.NewServer(st, repl, backup, log, ssMetrics, cfg.AcceptPollInterval)

	clientLn, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", clientPortNum))
	if err != nil {
		return fmt.Errorf("listen client port %d: %w", clientPortNum, err)
	}
	replLn, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", replPortNum))
	if err != nil {
		return fmt.Errorf("listen replication port %d: %w", replPortNum, err)
	}
	if err := netutil.SetAcceptTimeout(clientLn, cfg.AcceptPollInterval); err != nil {
		log.Warn("could not set accept timeout on client listener", "error", err)
	}
	if err := netutil.SetAcceptTimeout(replLn, cfg.AcceptPollInterval); err != nil {
		log.Warn("could not set accept timeout on replication listener", "error", err)
	}

	nsClient := &storageserver.NSClient{
		NSAddr:       fmt.Sprintf("%s:%s", nsIP, nsPort),
		MyIP:         myIP,
		MyClientPort: uint32(clientPortNum),
		MyReplPort:   uint32(replPortNum),
		Logger:       log,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ack, err := nsClient.Register(ctx)
	if err != nil {
		return fmt.Errorf("register with name server: %w", err)
	}
	if ack.BackupIP != "" {
		backup.Set(ack.BackupIP, ack.BackupReplPort)
	}
	if ack.MustRecover {
		log.Warn("name server flagged this ss for recovery", "ss_id", ack.SSID)
	}
	log.Info("registered with name server", "ss_id", ack.SSID)
	srv.SetNSClient(nsClient)

	errCh := make(chan error, 4)
	go func() { errCh <- srv.ServeDataPlane(ctx, clientLn) }()
	go func() { errCh <- srv.ServeReplication(ctx, replLn) }()
	go repl.Run(ctx)
	go srv.RunPeriodicCheckpoint(ctx, cfg.CheckpointInterval)
	go func() {
		if err := nsClient.RunHeartbeat(ctx, ack.SSID, cfg.HeartbeatInterval); err != nil {
			errCh <- err
		}
	}()

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

	log.Info("storage server started", logger.SSID(ack.SSID), logger.ClientPort(uint32(clientPortNum)), logger.ReplPort(uint32(replPortNum)))

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
	_ = replLn.Close()
	_ = nsClient.Close()

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	log.Info("storage server stopped")
	return nil
}
