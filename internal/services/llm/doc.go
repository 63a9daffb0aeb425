// Package llm provides an OpenRouter chat client used for script generation.
//
// The client sends a system/user prompt pair with a JSON-only response format
// and returns the raw payload. Parsing and validation of the scene list lives
// with the caller; DecodeLLMJSON handles the common formatting quirks (code
// fences, prose around the JSON body) that models produce despite the
// structured response request.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, network timeouts, and empty
// completions with exponential backoff (base 1s, max 10s, up to 5 attempts by
// default). A Retry-After header takes precedence over the computed backoff.
// Context cancellation aborts retries immediately.
package llm
