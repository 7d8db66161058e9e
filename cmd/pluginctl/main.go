// Command pluginctl bootstraps a plugin Service from manifest files on
// disk, runs it through Setup and Start, serves its introspection and
// metrics endpoints, and drives a clean shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/AerafalDev/Qosmos/hostinfo"
	"github.com/AerafalDev/Qosmos/plugin"
	"github.com/AerafalDev/Qosmos/telemetry"
)

var (
	manifestDir = flag.String("manifest-dir", "./plugins", "Directory of plugin manifest.json files to register at boot")
	hostVersion = flag.String("host-version", "1.0.0", "This host's own version, checked against each manifest's serverVersion range")
	addr        = flag.String("addr", ":8090", "HTTP listen address for introspection and metrics")
)

func main() {
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if err := run(logger); err != nil {
		log.Fatalf("pluginctl: %v", err)
	}
	fmt.Println("shutdown complete")
}

func run(logger *slog.Logger) error {
	host := hostinfo.New(*hostVersion, "pluginctl")
	collector := telemetry.NewCollector()

	svc := plugin.NewService(host.Version, noopFactory{}, plugin.NewSlogLogger(logger), collector)

	manifests, err := loadManifests(*manifestDir)
	if err != nil {
		return fmt.Errorf("loading manifests: %w", err)
	}
	for _, m := range manifests {
		if err := svc.Register(&plugin.Candidate{Manifest: m}); err != nil {
			logger.Warn("skipping candidate", "manifest", m.Identifier(), "error", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Setup(ctx); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	mux := http.NewServeMux()
	plugin.NewAPIHandler(svc).RegisterRoutes(mux)
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{Addr: *addr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("shutting down...")
		_ = srv.Close()
		cancel()
	}()

	logger.Info("pluginctl listening", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		svc.Stop(context.Background())
		return err
	}

	svc.Stop(context.Background())
	return nil
}

func loadManifests(dir string) ([]*plugin.Manifest, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []*plugin.Manifest
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		m := &plugin.Manifest{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// noopFactory is the default instance factory when a host hasn't wired its
// own: every manifest it's asked to construct fails. Units still register
// and resolve, but no instance is created; Setup logs each failed
// instantiation and carries on without returning an error.
type noopFactory struct{}

func (noopFactory) New(_ context.Context, descriptor string) (plugin.Plugin, error) {
	return nil, fmt.Errorf("pluginctl: no instance factory wired for %q", descriptor)
}
