package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config regroupe tous les paramètres de configuration de l'application.
type Config struct {
	DatabaseURL          string
	JWTSecretKey         string
	ServerPort           int
	StatusUpdateInterval time.Duration
	CORSAllowedOrigins   []string
}

// Load charge la configuration depuis les variables d'environnement.
// Un fichier .env est chargé s'il existe (pratique en développement local).
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	portStr := os.Getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	intervalStr := os.Getenv("STATUS_UPDATE_INTERVAL_MINUTES")
	if intervalStr == "" {
		intervalStr = "5"
	}
	intervalMin, err := strconv.Atoi(intervalStr)
	if err != nil || intervalMin <= 0 {
		return nil, fmt.Errorf("invalid STATUS_UPDATE_INTERVAL_MINUTES environment variable: %q", intervalStr)
	}

	origins := []string{"*"}
	if raw := os.Getenv("CORS_ALLOWED_ORIGINS"); raw != "" {
		origins = origins[:0]
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				origins = append(origins, part)
			}
		}
	}

	cfg := &Config{
		DatabaseURL:          dbURL,
		JWTSecretKey:         jwtKey,
		ServerPort:           port,
		StatusUpdateInterval: time.Duration(intervalMin) * time.Minute,
		CORSAllowedOrigins:   origins,
	}

	return cfg, nil
}
