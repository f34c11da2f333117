// Package config loads daemon configuration.
//
// Sources are applied in order: config.yml (found under ./cmd/<service>/,
// ./config/ or the working directory), a .env file loaded with godotenv,
// then STREAMFETCH_* environment variables. Viper merges them and
// unmarshals into the caller's struct using mapstructure tags.
//
// # Usage
//
//	var cfg Config
//	if err := config.Load("streamfetchd", &cfg); err != nil { ... }
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil { ... }
package config
