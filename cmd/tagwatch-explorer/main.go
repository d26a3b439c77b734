// tagwatch-explorer serves the dependency graph of one container over
// GraphQL for interactive investigation.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/tagwatch/tagwatch/pkg/classify"
	"github.com/tagwatch/tagwatch/pkg/config"
	"github.com/tagwatch/tagwatch/pkg/container"
	"github.com/tagwatch/tagwatch/pkg/depgraph"
	"github.com/tagwatch/tagwatch/pkg/explore"
	"github.com/tagwatch/tagwatch/pkg/googleauth"
	"github.com/tagwatch/tagwatch/pkg/gtm"
	"github.com/tagwatch/tagwatch/pkg/impact"
	"github.com/tagwatch/tagwatch/pkg/logging"
	"github.com/tagwatch/tagwatch/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "tagwatch.yaml", "Path to the config file")
	containerID := flag.String("container", "", "Container public id to explore (GTM-XXXXXXX)")
	versionFile := flag.String("version-file", "", "Load the container version from a JSON file instead of the API")
	flag.Parse()

	if err := run(*configPath, *containerID, *versionFile); err != nil {
		fmt.Fprintf(os.Stderr, "tagwatch-explorer: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, containerID, versionFile string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.NewJSONLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	version, err := loadVersion(cfg, containerID, versionFile, logger)
	if err != nil {
		return err
	}

	registry := metrics.NewRegistry()

	buildStart := time.Now()
	graph := depgraph.Build(version)
	registry.ObserveGraph(graph.NodeCount(), graph.EdgeCount(), time.Since(buildStart))
	relevance := classify.Classify(version, cfg.Impact)
	searcher := impact.NewSearcher(graph, relevance, cfg.Impact, logger)

	explorer := &explore.Explorer{
		ContainerID: containerID,
		Graph:       graph,
		Relevance:   &relevance,
		Searcher:    searcher,
		Metrics:     registry,
	}
	server, err := explore.NewServer(explorer, cfg.Explorer.User, cfg.Explorer.PasswordBcrypt, logger)
	if err != nil {
		return err
	}

	logger.Info("explorer listening",
		logging.String("addr", cfg.Explorer.Listen),
		logging.ContainerID(containerID),
		logging.Int("variables", graph.NodeCount()),
		logging.Int("edges", graph.EdgeCount()))
	return http.ListenAndServe(cfg.Explorer.Listen, server.Handler(registry))
}

func loadVersion(cfg *config.Config, containerID, versionFile string, logger logging.Logger) (*container.Version, error) {
	if versionFile != "" {
		data, err := os.ReadFile(versionFile)
		if err != nil {
			return nil, err
		}
		return container.ParseVersion(data)
	}
	if containerID == "" {
		return nil, fmt.Errorf("either -container or -version-file is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	creds, err := googleauth.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	client := gtm.NewClient(googleauth.NewTokenSource(creds, googleauth.Scopes, nil), nil, logger)
	cont, err := client.FindContainerByPublicID(ctx, containerID)
	if err != nil {
		return nil, err
	}
	return client.LiveVersion(ctx, cont.Path)
}
