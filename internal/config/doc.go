// Package config loads kirogpt's configuration.
//
// Configuration comes from an optional TOML file whose contents may reference
// environment variables as ${VAR}. Well-known environment variables
// (MATRIX_ACCESS_TOKEN, DATABASE_URL, OPENAI_API_KEY and friends) then override
// the file, defaults fill the gaps, and Validate rejects anything still missing.
//
// Example:
//
//	[matrix]
//	homeserver = "https://matrix.example.org"
//	access_token = "${MATRIX_ACCESS_TOKEN}"
//	allowed_rooms = ["!abc:example.org"]
//
//	[database]
//	url = "sqlite:///var/lib/kirogpt/kirogpt.db"
//
//	[completion]
//	model = "gpt-3.5-turbo"
//
//	[bot]
//	typing_interval = "5s"
//	warning_ttl = "5s"
//
//	[logging]
//	level = "info"
//	format = "text"
package config
