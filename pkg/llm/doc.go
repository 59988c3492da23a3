// Package llm is the boundary to chat-completion providers.
//
// Invariants:
// - A provider receives the full ordered history and returns one Response or an error.
// - Providers never retry; the SDK clients are built with retries disabled.
// - Reply text is pulled out of Response.Raw by an ordered list of extraction strategies.
//
// Usage:
//
//	provider, _ := (&llm.ProviderFactory{}).NewProvider(llm.Profile{Provider: "openai", APIKey: key})
//	resp, _ := provider.Complete(ctx, llm.Request{Model: llm.DefaultGroqModel, Messages: history})
//	reply, ok := llm.ExtractReply(resp.Raw)
//	_, _ = reply, ok
package llm
