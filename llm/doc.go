// Package llm implements the multi-provider fallback manager that secures
// model calls for agents: an ordered, filterable chain of provider/model
// configurations tried sequentially until one succeeds, with response
// caching, token-bucket rate limiting and per-provider usage accounting.
// Vendor adapters live in the anthropic and openai subpackages.
package llm
