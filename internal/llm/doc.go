// Package llm provides text-generation clients used by the advisor.
// It supports Anthropic, OpenAI and Gemini, with retry logic, rate limiting,
// and response caching layered on top of the raw provider clients.
package llm
