// Command invoiced runs the invoice processing workflow service: the
// engine, its two Bigtool capability servers, and the client-facing HTTP
// API, all in one process.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v8"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/invoiceflow/workflow-engine/graph"
	"github.com/invoiceflow/workflow-engine/graph/emit"
	"github.com/invoiceflow/workflow-engine/graph/model/anthropic"
	"github.com/invoiceflow/workflow-engine/graph/store"
	"github.com/invoiceflow/workflow-engine/internal/bigtool"
	"github.com/invoiceflow/workflow-engine/internal/capabilityserver"
	"github.com/invoiceflow/workflow-engine/internal/config"
	"github.com/invoiceflow/workflow-engine/internal/httpapi"
	"github.com/invoiceflow/workflow-engine/internal/reviewqueue"
	"github.com/invoiceflow/workflow-engine/internal/workflow"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "invoiced",
	Short: "Invoice processing workflow service",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the capability servers and the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "Print the fixed twelve-stage workflow catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		for i, stage := range workflow.StageOrder {
			fmt.Printf("%2d. %s\n", i+1, stage)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.AddCommand(serveCmd, stagesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	common := capabilityserver.NewCommonServer()
	atlas := capabilityserver.NewAtlasServer()
	commonSrv := startCapabilityServer(common.Router(), cfg.CommonURL)
	atlasSrv := startCapabilityServer(atlas.Router(), cfg.AtlasURL)
	defer shutdown(commonSrv)
	defer shutdown(atlasSrv)

	orch := bigtool.NewOrchestrator(
		bigtool.NewServerClient(bigtool.ServerCommon, cfg.CommonURL),
		bigtool.NewServerClient(bigtool.ServerAtlas, cfg.AtlasURL),
		cfg.MockFallback,
	)
	if cfg.AnthropicAPIKey != "" {
		llm := anthropic.NewChatModel(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		orch.SetDynamicPicker(bigtool.NewDynamicPicker(llm, orch.Picker()))
	}

	checkpointStore, err := store.NewSQLiteStore[workflow.State](cfg.StorePath)
	if err != nil {
		return err
	}

	bus := emit.NewBusWithHeartbeat(cfg.HeartbeatInterval)

	var reviewQueue reviewqueue.Store
	if cfg.ReviewBackend == "redis" {
		reviewQueue = reviewqueue.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	} else {
		reviewQueue = reviewqueue.NewMemStore()
	}

	metrics := graph.NewPrometheusMetrics(nil)
	domainMetrics := workflow.NewDomainMetrics(nil)

	engine := workflow.NewEngine(workflow.Dependencies{
		Orchestrator:   orch,
		Store:          checkpointStore,
		Bus:            bus,
		ReviewQueue:    reviewQueue,
		MatchThreshold: cfg.MatchThreshold,
		TolerancePct:   cfg.TolerancePct,
		ReviewURLFmt:   "/human-review/%s",
		Metrics:        domainMetrics,
		EngineOptions: []graph.Option{
			graph.WithMetrics(metrics),
		},
	})

	engine.AddEmitter(emit.NewOTelEmitter(otel.Tracer("invoiced")))

	api := httpapi.New(engine, checkpointStore, bus, reviewQueue)
	mux := api.Router()
	mux.Handle("/metrics", promhttp.Handler())

	log.Info("invoiced listening", "addr", cfg.ListenAddr)
	return http.ListenAndServe(cfg.ListenAddr, mux)
}

func startCapabilityServer(handler http.Handler, baseURL string) *http.Server {
	addr := addrFromURL(baseURL)
	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		log.Info("capability server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("capability server stopped", "addr", addr, "err", err)
		}
	}()
	return srv
}

// addrFromURL extracts "host:port" from a capability server base URL
// (e.g. "http://localhost:8081" -> "localhost:8081"), since both servers
// in this deployment run in-process and only the bind address matters.
func addrFromURL(rawURL string) string {
	const httpPrefix = "http://"
	const httpsPrefix = "https://"
	addr := rawURL
	if len(addr) >= len(httpPrefix) && addr[:len(httpPrefix)] == httpPrefix {
		addr = addr[len(httpPrefix):]
	} else if len(addr) >= len(httpsPrefix) && addr[:len(httpsPrefix)] == httpsPrefix {
		addr = addr[len(httpsPrefix):]
	}
	return addr
}

func shutdown(srv *http.Server) {
	if srv == nil {
		return
	}
	_ = srv.Close()
}
