// Package llm provides language model clients used for categorization and reconciliation.
// It supports OpenAI, Anthropic and Gemini behind one Client interface, with a
// per-process rate limiter and helpers for decoding JSON replies.
package llm
