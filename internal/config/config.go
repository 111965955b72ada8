package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type BotConfig struct {
	DiscordToken string
	DatabaseURL  string
	RedisURL     string
	AdminAddr    string
	AdminToken   string
	ImageRoot    string
	Channel      string
	Prefix       string
	OwnerIDs     []string
	LogLevel     string

	MaxConns int32

	MenuTimeout      time.Duration
	ConfirmTimeout   time.Duration
	ThrowTimeout     time.Duration
	PCInfoTimeout    time.Duration
	PartyTimeout     time.Duration
	DeleteAfter      time.Duration
	EncounterCooling time.Duration
	RewardCooling    time.Duration
	PartyMax         int
	MigrateOnStart   bool
}

type CtlConfig struct {
	AdminBaseURL string
	AdminToken   string
	DatabaseURL  string
}

func LoadBotFromEnv() (BotConfig, error) {
	cfg := BotConfig{
		DiscordToken: strings.TrimSpace(os.Getenv("DISCORD_TOKEN")),
		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:     strings.TrimSpace(os.Getenv("REDIS_URL")),
		AdminAddr:    envDefault("POKEBOT_ADMIN_ADDR", ":8080"),
		AdminToken:   strings.TrimSpace(os.Getenv("POKEBOT_ADMIN_TOKEN")),
		ImageRoot:    strings.TrimRight(envDefault("POKEBOT_IMAGE_ROOT", "data/pokemon/images"), "/"),
		Channel:      envDefault("POKEBOT_CHANNEL", "pokemon"),
		Prefix:       envDefault("POKEBOT_PREFIX", "!"),
		OwnerIDs:     envList("POKEBOT_OWNER_IDS"),
		LogLevel:     envDefault("POKEBOT_LOG_LEVEL", "info"),

		MaxConns: int32(envIntDefault("POKEBOT_DB_MAX_CONNS", 10)),

		MenuTimeout:      envDurationDefault("POKEBOT_MENU_TIMEOUT", 60*time.Second),
		ConfirmTimeout:   envDurationDefault("POKEBOT_CONFIRM_TIMEOUT", 60*time.Second),
		ThrowTimeout:     envDurationDefault("POKEBOT_THROW_TIMEOUT", 20*time.Second),
		PCInfoTimeout:    envDurationDefault("POKEBOT_PC_INFO_TIMEOUT", 115*time.Second),
		PartyTimeout:     envDurationDefault("POKEBOT_PARTY_TIMEOUT", 115*time.Second),
		DeleteAfter:      envDurationDefault("POKEBOT_DELETE_AFTER", 60*time.Second),
		EncounterCooling: envDurationDefault("POKEBOT_ENCOUNTER_COOLDOWN", 150*time.Second),
		RewardCooling:    envDurationDefault("POKEBOT_REWARD_COOLDOWN", 3*time.Hour),
		PartyMax:         envIntDefault("POKEBOT_PARTY_MAX", 4),
		MigrateOnStart:   envBoolDefault("POKEBOT_MIGRATE_ON_START", false),
	}
	if cfg.DiscordToken == "" {
		return cfg, fmt.Errorf("DISCORD_TOKEN is required")
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.PartyMax < 1 {
		return cfg, fmt.Errorf("POKEBOT_PARTY_MAX must be at least 1, got %d", cfg.PartyMax)
	}
	return cfg, nil
}

func LoadCtlFromEnv() CtlConfig {
	return CtlConfig{
		AdminBaseURL: strings.TrimRight(envDefault("POKECTL_ADMIN_URL", "http://localhost:8080"), "/"),
		AdminToken:   strings.TrimSpace(os.Getenv("POKECTL_ADMIN_TOKEN")),
		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
