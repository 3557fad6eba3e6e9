// Package llm verifies uncertain merchant pairs with a language model. It
// supports OpenAI, Anthropic, Gemini and the Claude Code CLI, with retry
// logic, rate limiting and verdict caching.
package llm
