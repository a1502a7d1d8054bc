// Package config handles configuration loading for charla.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from CHARLA_CONFIG environment variable
//  2. ~/.config/charla/charla.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	whatsapp:
//	  access_token: "${WHATSAPP_ACCESS_TOKEN}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	assistant:
//	  poll_interval: "500ms"
//	  run_timeout: "2m"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # Webhook listener
//
// WhatsApp provider:
//
//	whatsapp:
//	  access_token: "${WHATSAPP_ACCESS_TOKEN}"
//	  app_secret: "${WHATSAPP_APP_SECRET}"
//	  verify_token: "${WHATSAPP_VERIFY_TOKEN}"
//	  phone_number_id: "123456789"
//	  api_version: "v18.0"
//
// Assistant backend:
//
//	assistant:
//	  api_key: "${OPENAI_API_KEY}"
//	  assistant_id: "${OPENAI_ASSISTANT_ID}"
//	  poll_interval: "500ms"
//	  run_timeout: "2m"
//
// Transcription backend:
//
//	transcribe:
//	  api_key: "${GOOGLE_CLOUD_API_KEY}"
//	  language: "es-ES"
//
// Database:
//
//	database:
//	  path: "/var/lib/charla/charla.db"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
