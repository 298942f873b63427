// Command ebs drives a single evolutionary beam search run against a
// problem statement, streaming its progress to stdout and exposing
// Prometheus metrics, wiring together the Inference Service adapter
// selected by EBS_PROVIDER, the Knowledge Base archive, and the
// Simulation Supervisor.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph/emit"
	"github.com/evobeam/ebs-go/graph/model"
	"github.com/evobeam/ebs-go/graph/store"
	"github.com/evobeam/ebs-go/inference/anthropic"
	"github.com/evobeam/ebs-go/inference/google"
	"github.com/evobeam/ebs-go/inference/openai"
	"github.com/evobeam/ebs-go/kb"
	"github.com/evobeam/ebs-go/kb/mysqlindex"
	"github.com/evobeam/ebs-go/nodes"
	"github.com/evobeam/ebs-go/supervisor"
)

func main() {
	problem := os.Getenv("EBS_PROBLEM")
	if problem == "" {
		problem = "Design a fault-tolerant rate limiter for a multi-tenant API gateway."
	}

	cfg := ebs.NewConfig()

	rawChat, embedder := buildInferenceAdapters(cfg)
	chat := nodes.NewTrackedChatModel(rawChat, os.Getenv("EBS_MODEL"), "cli-run")

	kbDir := os.Getenv("EBS_KB_DIR")
	if kbDir == "" {
		kbDir = "./kb-archive"
	}

	var index *mysqlindex.Index
	if cfg.KBMySQLDSN != "" {
		idx, err := mysqlindex.Open(cfg.KBMySQLDSN)
		if err != nil {
			log.Printf("knowledge base: mysql index unavailable, falling back to file scan only: %v", err)
		} else {
			defer idx.Close()
			index = idx
		}
	}

	archive, err := kb.NewArchive(kbDir, embedder, index)
	if err != nil {
		log.Fatalf("knowledge base: %v", err)
	}

	st, closeStore := buildStore()
	if closeStore != nil {
		defer closeStore()
	}

	logEmitter := emit.NewLogEmitter(os.Stdout, false)

	deps := nodes.Deps{
		Chat:            chat,
		Embedder:        embedder,
		WriteExperience: kb.NewWriteExperienceTool(archive),
		Archive:         archive.WriteStrategyArchive,
	}

	sup, err := supervisor.New(deps, st, logEmitter)
	if err != nil {
		log.Fatalf("supervisor: %v", err)
	}

	go serveMetrics(os.Getenv("EBS_METRICS_ADDR"))

	_, events := sup.Subscribe()
	go printEvents(events)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := sup.Start(ctx, problem, cfg); err != nil {
		log.Fatalf("start: %v", err)
	}

	<-ctx.Done()
	sup.Stop()
	time.Sleep(200 * time.Millisecond) // let the final broadcast drain
}

// buildInferenceAdapters selects a live provider by EBS_PROVIDER
// (anthropic, openai, google), or the deterministic mock pair when
// cfg.UseMockAgents is set (or no provider is configured), so the
// pipeline can be exercised without API keys.
func buildInferenceAdapters(cfg ebs.Config) (model.ChatModel, model.Embedder) {
	if cfg.UseMockAgents {
		return &model.MockChatModel{}, &model.MockEmbedder{Default: []float64{0.1, 0.1, 0.1}}
	}
	switch os.Getenv("EBS_PROVIDER") {
	case "anthropic":
		return anthropic.NewChatModel(os.Getenv("ANTHROPIC_API_KEY"), os.Getenv("EBS_MODEL")),
			openai.NewEmbedder(os.Getenv("OPENAI_API_KEY"), "")
	case "openai":
		return openai.NewChatModel(os.Getenv("OPENAI_API_KEY"), os.Getenv("EBS_MODEL")),
			openai.NewEmbedder(os.Getenv("OPENAI_API_KEY"), "")
	case "google":
		return google.NewChatModel(os.Getenv("GOOGLE_API_KEY"), os.Getenv("EBS_MODEL")),
			google.NewEmbedder(os.Getenv("GOOGLE_API_KEY"), "")
	default:
		return &model.MockChatModel{}, &model.MockEmbedder{Default: []float64{0.1, 0.1, 0.1}}
	}
}

// buildStore selects SQLiteStore when EBS_STORE_PATH is set, otherwise an
// in-memory store; the returned closer is nil for the in-memory case.
func buildStore() (store.Store[ebs.RunState], func()) {
	path := os.Getenv("EBS_STORE_PATH")
	if path == "" {
		return store.NewMemStore[ebs.RunState](), nil
	}
	sqliteStore, err := store.NewSQLiteStore[ebs.RunState](path)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	return sqliteStore, func() { sqliteStore.Close() }
}

func serveMetrics(addr string) {
	if addr == "" {
		addr = ":9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("metrics server stopped: %v", err)
	}
}

// printEvents renders the supervisor's broadcast protocol to stdout
// until the channel is closed; a terminal status is printed like any
// other message and does not end the loop.
func printEvents(events <-chan supervisor.Message) {
	for msg := range events {
		switch msg.Type {
		case "status":
			fmt.Printf("[status] %v\n", msg.Data)
		case "agent_start":
			fmt.Printf("[agent_start] %v\n", msg.Data)
		case "agent_progress":
			fmt.Printf("[agent_progress] %v\n", msg.Data)
		case "final_report":
			fmt.Println("[final_report]")
			fmt.Println(msg.Data)
		case "cost_summary":
			fmt.Printf("[cost_summary] %+v\n", msg.Data)
		case "hil_required":
			req, _ := json.Marshal(msg.Data)
			fmt.Printf("[hil_required] %s\n", req)
		default:
			fmt.Printf("[%s] %v\n", msg.Type, msg.Data)
		}
	}
}
