// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianBookQA/services/orchestrator"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the book QA HTTP server",
	Long: `Starts the HTTP server exposing /health, /metrics, and the /v1
query routes. The corpus backend, LLM backend, and collector endpoint
are configured through the YAML config and environment variables
(WEAVIATE_SERVICE_URL, LLM_BACKEND_TYPE, OTEL_EXPORTER_OTLP_ENDPOINT).`,
	Run: runServeCommand,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"Port to listen on (overrides the config file)")
	rootCmd.AddCommand(serveCmd)
}

func runServeCommand(cmd *cobra.Command, args []string) {
	svc, err := orchestrator.New(orchestrator.Config{Port: servePort})
	if err != nil {
		log.Fatalf("Failed to initialize the service: %v", err)
	}
	if err := svc.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
