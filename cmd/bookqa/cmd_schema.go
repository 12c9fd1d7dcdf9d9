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
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/AleutianAI/AleutianBookQA/services/corpus"
)

var initSchemaCmd = &cobra.Command{
	Use:   "init-schema",
	Short: "Creates the BookChunk class in Weaviate if it doesn't exist",
	Long: `Connects to the Weaviate instance at WEAVIATE_SERVICE_URL and
creates the BookChunk class used by the ingestion pipeline and the
query service. Safe to run repeatedly; the operation is idempotent.`,
	Run: runInitSchemaCommand,
}

func init() {
	rootCmd.AddCommand(initSchemaCmd)
}

func runInitSchemaCommand(cmd *cobra.Command, args []string) {
	weaviateURL := strings.Trim(os.Getenv("WEAVIATE_SERVICE_URL"), "\"' ")
	if weaviateURL == "" {
		log.Fatal("WEAVIATE_SERVICE_URL is not set")
	}
	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		log.Fatalf("WEAVIATE_SERVICE_URL is invalid: %q", weaviateURL)
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		log.Fatalf("Failed to create the Weaviate client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := corpus.EnsureSchema(ctx, client); err != nil {
		log.Fatalf("Schema initialization failed: %v", err)
	}
	fmt.Printf("Schema %s is ready at %s\n", corpus.BookChunkClassName, parsedURL.Host)
}
