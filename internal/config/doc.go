// Package config handles configuration loading, parsing, and validation
// from environment variables and optional config files. It provides
// type-safe access to the server and executor settings while keeping
// configuration details separate from the execution logic.
package config
