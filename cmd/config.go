package main

import "time"

type Config struct {
	BadgerFilepath            string        `env:"BADGER_FILEPATH,required=true"`
	SearchIndexPath           string        `env:"SEARCH_INDEX_PATH,required=true"`
	LogLevel                  string        `env:"LOG_LEVEL,required=true"`
	Host                      string        `env:"HOST,default=0.0.0.0"`
	Port                      int           `env:"PORT,default=8080"`
	JWTSecret                 string        `env:"JWT_SECRET,required=true"`
	TokenTTL                  time.Duration `env:"TOKEN_TTL,default=24h"`
	OpenRouterAPIKey          string        `env:"OPENROUTER_API_KEY"`
	OpenRouterModel           string        `env:"OPENROUTER_MODEL"`
	OpenRouterReferer         string        `env:"OPENROUTER_REFERER"`
	DetectTimeout             time.Duration `env:"DETECT_TIMEOUT"`
	TranslateTimeout          time.Duration `env:"TRANSLATE_TIMEOUT"`
	ModerationCharReplacement rune          `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
	ShutdownTimeout           time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}
