// Package config loads the clauseguard YAML configuration.
//
// A missing file is not an error: Load returns the defaults, which run
// entirely on the local machine (chromem index under ./data, an
// OpenAI-compatible server on localhost:11434). Secrets are never stored in
// the file; the ai section names the environment variable holding the API key.
package config
