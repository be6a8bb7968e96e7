// Copyright (c) The Threadline Authors. All rights reserved.

// Command chat demonstrates a multi-turn conversation whose history is kept
// by a history-wrapped chat client. The wrapped OpenAI client never sees any
// history logic; the wrapper loads and appends it per conversation.
//
// It works with both direct OpenAI and Azure AI Foundry endpoints.
//
// Usage with OpenAI:
//
//	export OPENAI_API_KEY=sk-...
//	go run .
//
// Usage with Azure AI Foundry:
//
//	export AZURE_FOUNDRY_ENDPOINT=https://<project>.services.ai.azure.com/openai/deployments/<deployment>
//	export AZURE_FOUNDRY_KEY=<your-key>
//	export AZURE_FOUNDRY_MODEL=gpt-4o          # optional, defaults to gpt-4o
//	go run .
//
// Set HISTORY_DB to a file path to persist conversations in SQLite across
// runs; without it histories live in memory.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/joho/godotenv"

	tl "github.com/threadline-ai/threadline"
	"github.com/threadline-ai/threadline/openai"
	"github.com/threadline-ai/threadline/sqlitestore"
)

func main() {
	// Load .env file if present (ignored if missing).
	_ = godotenv.Load()

	// Enable debug logging if requested
	if os.Getenv("DEBUG") != "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	client := newChatClient()
	store := newHistoryStore()

	chat, err := tl.NewHistoryClient(client, store)
	if err != nil {
		log.Fatalf("Failed to create history client: %v", err)
	}

	// One conversation per process run. Reuse a fixed id together with
	// HISTORY_DB to resume a conversation across runs.
	conversationID := os.Getenv("CONVERSATION_ID")
	if conversationID == "" {
		conversationID = tl.NewSessionID()
	}
	opts := &tl.ChatOptions{
		ConversationID: conversationID,
		Instructions:   "You are a helpful assistant. Keep responses concise.",
	}

	fmt.Printf("Conversation %s\n", conversationID)
	fmt.Println("Chat with the assistant (type 'quit' to exit, 'stream' prefix for streaming)")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" {
			break
		}

		ctx := context.Background()

		if strings.HasPrefix(input, "stream ") {
			// Streaming mode
			input = strings.TrimPrefix(input, "stream ")
			stream, err := chat.StreamResponse(ctx,
				[]tl.Message{tl.NewUserMessage(input)},
				opts,
			)
			if err != nil {
				log.Printf("Error: %v", err)
				continue
			}

			fmt.Print("Assistant: ")
			for {
				update, ok, err := stream.Next(ctx)
				if err != nil {
					log.Printf("\nStream error: %v", err)
					break
				}
				if !ok {
					break
				}
				fmt.Print(update.Text())
			}
			fmt.Println()
			stream.Close()
		} else {
			// Non-streaming mode
			resp, err := chat.Response(ctx,
				[]tl.Message{tl.NewUserMessage(input)},
				opts,
			)
			if err != nil && resp == nil {
				log.Printf("Error: %v", err)
				continue
			}
			if err != nil {
				// Persist failure: the answer is valid, the history fell behind.
				log.Printf("Warning: %v", err)
			}

			fmt.Printf("Assistant: %s\n", resp.Text())
			if resp.Usage.TotalTokens > 0 {
				fmt.Printf("  [tokens: %d in, %d out]\n",
					resp.Usage.InputTokens, resp.Usage.OutputTokens)
			}
		}
		fmt.Println()
	}
}

// newHistoryStore picks SQLite persistence when HISTORY_DB is set, otherwise
// an in-memory store.
func newHistoryStore() tl.HistoryStore {
	path := os.Getenv("HISTORY_DB")
	if path == "" {
		return tl.NewMemoryStore()
	}
	store, err := sqlitestore.Open(path)
	if err != nil {
		log.Fatalf("Failed to open history database: %v", err)
	}
	fmt.Printf("Persisting history to %s\n", path)
	return store
}

// newChatClient creates an OpenAI-compatible client, choosing between Azure AI
// Foundry and direct OpenAI based on which environment variables are set.
func newChatClient() *openai.Client {
	// Azure AI Foundry uses the OpenAI-compatible endpoint.
	if endpoint := os.Getenv("AZURE_FOUNDRY_ENDPOINT"); endpoint != "" {
		key := os.Getenv("AZURE_FOUNDRY_KEY")
		model := os.Getenv("AZURE_FOUNDRY_MODEL")
		if model == "" {
			model = "gpt-4o"
		}

		fmt.Printf("Using Azure AI Foundry: %s\n", endpoint)

		// If no key provided, use Azure AD authentication
		if key == "" {
			fmt.Println("Using Azure AD authentication (DefaultAzureCredential)")
			cred, err := azidentity.NewDefaultAzureCredential(nil)
			if err != nil {
				log.Fatalf("Failed to create Azure credential: %v", err)
			}
			return openai.New("", // empty key when using Azure AD
				openai.WithBaseURL(endpoint),
				openai.WithModel(model),
				openai.WithAzureCredential(cred),
			)
		}

		// API key authentication
		return openai.New(key,
			openai.WithBaseURL(endpoint),
			openai.WithModel(model),
			openai.WithHeaders(map[string]string{
				"api-key": key, // Azure uses api-key header instead of Bearer token
			}),
		)
	}

	// Direct OpenAI
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("Set OPENAI_API_KEY or AZURE_FOUNDRY_ENDPOINT")
	}
	return openai.New(apiKey,
		openai.WithModel("gpt-4o"),
	)
}
