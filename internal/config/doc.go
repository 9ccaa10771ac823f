// Package config loads, normalizes, and validates gazette machine configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GM_API_URL and GM_AUTH_TOKEN. The Config value is built once at process
// start and handed to component constructors; nothing below cmd/ reads the
// environment directly.
package config
