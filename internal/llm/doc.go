// Package llm defines the provider-neutral chat completion contract used by
// the agent's planner, extractor and summariser stages. Concrete providers
// such as the OpenAI-compatible HTTP client live in subpackages.
package llm
