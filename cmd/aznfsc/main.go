// Command aznfsc mounts a remote NFSv3 export as a local filesystem
// through the kernel-bridge FUSE adapter.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blobnfs/aznfsc/client"
	"github.com/blobnfs/aznfsc/config"
	"github.com/blobnfs/aznfsc/kbridge"
	"github.com/blobnfs/aznfsc/logging"
	"github.com/blobnfs/aznfsc/metrics"
	"github.com/blobnfs/aznfsc/nfs3"
	"github.com/blobnfs/aznfsc/rpcconn"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aznfsc",
		Short: "Mount a remote NFSv3 export as a local filesystem",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return run(context.Background(), cfg)
		},
	}
	config.BindFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	log, err := logging.New(cfg.LogLevel, true)
	if err != nil {
		return err
	}
	defer log.Sync()

	met := metrics.New()
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: met.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server exited", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool := rpcconn.NewPool(cfg.Server, cfg.Nconnect)
	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("rpcconn: %w", err)
	}
	defer pool.Stop()

	rootHandle, err := mountRoot(ctx, pool, cfg.Export)
	if err != nil {
		return fmt.Errorf("mount root: %w", err)
	}

	c := client.New(client.Options{
		Pool:        pool,
		RootHandle:  rootHandle,
		Actimeo:     time.Duration(cfg.Actimeo) * time.Second,
		ReadaheadKB: cfg.ReadaheadKB,
		LookupCache: client.LookupCachePolicy(cfg.LookupCache),
		Consistency: client.ConsistencyPolicy(cfg.Consistency),
		Logger:      log,
		Metrics:     met,
	})

	srv, err := kbridge.Mount(cfg.MountPoint, c, &kbridge.MountOptions{})
	if err != nil {
		return fmt.Errorf("fuse mount: %w", err)
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down, unmounting", zap.String("mountpoint", cfg.MountPoint))
		srv.Unmount()
	}()

	log.Info("mounted",
		zap.String("server", cfg.Server),
		zap.String("export", cfg.Export),
		zap.String("mountpoint", cfg.MountPoint),
		zap.Int("nconnect", cfg.Nconnect),
	)

	if err := srv.Serve(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("fuse serve: %w", err)
	}
	return nil
}

// mountRoot returns the root file handle used to seed the inode table:
// the bytes of the export path itself. No NFS MOUNT protocol call is
// made, and ctx and pool are not used.
func mountRoot(ctx context.Context, pool *rpcconn.Pool, export string) (nfs3.FileHandle, error) {
	return nfs3.FileHandle(export), nil
}
