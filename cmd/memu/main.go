// Command memu is a thin CLI over engine.Service: load a YAML config, then
// either memorize a resource or retrieve against the stored memory for a
// query. It mirrors cmd/embedctl's flag-parse-then-call-one-operation
// shape, narrowed from an embedding-only client to this engine's two
// operations.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"

	"memu/internal/memu/config"
	"memu/internal/memu/engine"
	"memu/internal/memu/memorize"
	"memu/internal/memu/model"
	"memu/internal/memu/retrieve"
)

func main() {
	log.SetFlags(0)
	var (
		configPath = flag.String("config", "memu.yaml", "path to YAML configuration")
		op         = flag.String("op", "", "operation: memorize or retrieve")
		url        = flag.String("url", "", "memorize: resource path or file:// URL")
		modality   = flag.String("modality", "document", "memorize: resource modality")
		query      = flag.String("query", "", "retrieve: user query text")
		userID     = flag.String("user", "", "scope: user_id")
		method     = flag.String("method", "rag", "retrieve: ranking method (rag or llm)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	svc, err := engine.New(ctx, cfg)
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}

	scope := model.Scope{}
	if *userID != "" {
		scope["user_id"] = *userID
	}

	switch strings.ToLower(*op) {
	case "memorize":
		if *url == "" {
			log.Fatal("memorize requires -url")
		}
		resp, err := svc.Memorize(ctx, memorize.Request{
			URL:      *url,
			Modality: model.Modality(*modality),
			Scope:    scope,
		})
		if err != nil {
			log.Fatalf("memorize: %v", err)
		}
		printJSON(resp)
	case "retrieve":
		if *query == "" {
			log.Fatal("retrieve requires -query")
		}
		resp, err := svc.Retrieve(ctx, retrieve.Request{
			Messages: []retrieve.Message{{Role: "user", Content: *query}},
			Scope:    scope,
		}, model.RetrieveMethod(strings.ToLower(*method)))
		if err != nil {
			log.Fatalf("retrieve: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatalf("unknown -op %q (want memorize or retrieve)", *op)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode response: %v", err)
	}
}
