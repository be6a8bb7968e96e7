// Copyright (c) The Threadline Authors. All rights reserved.

// Package openai provides a [threadline.ChatClient] implementation for the
// OpenAI Chat Completions API.
//
// Create a client and wrap it with [threadline.NewHistoryClient] so every
// conversation carries its own history:
//
//	client := openai.New(os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o"),
//	)
//
//	chat, err := threadline.NewHistoryClient(client, threadline.NewMemoryStore())
//
// The client supports both synchronous and streaming responses and all
// standard ChatOptions.
//
// # Configuration
//
// Use functional options to configure the client:
//
//   - [WithModel]: set the default model
//   - [WithBaseURL]: override the API endpoint (e.g., Azure OpenAI)
//   - [WithAzureCredential]: authenticate with Azure AD instead of an API key
//   - [WithOrganization]: set the OpenAI organization header
//   - [WithHTTPClient]: provide a custom http.Client
//   - [WithHeaders]: add custom headers to every request
//
// # Testing
//
// The client uses an unexported transport interface internally.
// For testing, provide a mock http.Client via [WithHTTPClient]
// with a custom RoundTripper.
package openai
