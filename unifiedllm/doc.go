// Package unifiedllm is a provider-agnostic LLM gateway. It wraps the gollm
// library (github.com/teilomillet/gollm) behind a small request/response API
// that speaks the OpenAI chat shape: messages with optional tool calls, and
// tools described as {type: "function", function: {...}}.
//
// # Architecture
//
//   - ProviderAdapter: one backend (GollmAdapter for every provider gollm supports)
//   - Client: provider routing ("provider:model" ids) and middleware
//   - Middleware: RetryMiddleware, LoggingMiddleware
//   - Errors: SDKError hierarchy with IsRetryable classification
//
// # Quick Start
//
//	adapter, _ := unifiedllm.NewGollmAdapter("openai", os.Getenv("OPENAI_API_KEY"))
//	client := unifiedllm.NewClient(
//	    unifiedllm.WithProvider("openai", adapter),
//	    unifiedllm.WithMiddleware(unifiedllm.RetryMiddleware(unifiedllm.DefaultRetryPolicy())),
//	)
//
//	resp, _ := client.Complete(ctx, unifiedllm.Request{
//	    Model:    "openai:gpt-4o-mini",
//	    Messages: []unifiedllm.Message{unifiedllm.UserMessage("Hello")},
//	})
//	fmt.Println(resp.Text())
package unifiedllm
