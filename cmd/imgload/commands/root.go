// Package commands implements the imgload CLI.
package commands

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/imgload"
	"github.com/unkn0wn-root/imgload/config"
)

type rootOptions struct {
	cfgFile     string
	metricsAddr string
}

// NewRootCmd returns the imgload command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "imgload",
		Short: "Warm and inspect the imgload image cache",
		Long: `imgload drives the request-coalescing image loader from the command line.

Configuration comes from --config and IMGLOAD_* environment variables,
e.g. IMGLOAD_STORE_KIND=fs IMGLOAD_STORE_FS_DIR=/var/cache/img.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (YAML, TOML or JSON)")
	root.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")

	root.AddCommand(newWarmCmd(opts))
	root.AddCommand(newInspectCmd(opts))
	return root
}

// runtime loads the configuration and builds a Loader, serving its metrics
// when an address is configured. The returned stop func closes both.
func (o *rootOptions) runtime(cmd *cobra.Command) (*config.Runtime, func(), error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if o.metricsAddr != "" {
		cfg.Metrics.Addr = o.metricsAddr
	}

	rt, err := config.Build(cmd.Context(), cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}

	var srv *http.Server
	if cfg.Metrics.Addr != "" {
		srv, err = serveMetrics(cfg.Metrics.Addr, rt.Registry)
		if err != nil {
			_ = rt.Close(context.Background())
			return nil, nil, err
		}
		rt.Logger.Info("metrics listening", imgload.Fields{"addr": cfg.Metrics.Addr})
	}

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if srv != nil {
			_ = srv.Shutdown(ctx)
		}
		if err := rt.Close(ctx); err != nil {
			rt.Logger.Warn("close failed", imgload.Fields{"err": err})
		}
	}
	return rt, stop, nil
}

func serveMetrics(addr string, reg *prometheus.Registry) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	return srv, nil
}
