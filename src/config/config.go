package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config is read from the environment, optionally seeded by a .env file.
type Config struct {
	Env        string
	Port       string
	AppURI     string
	MongoURI   string
	MongoDB    string
	RedisURI   string
	JWTSecret  string
	TZName     string
	Storage    string  // "mongo" or "memory"
	RateLimit  float64 // requests per second per operator
	RateBurst  int
	EnableJobs bool
}

// Load reads a .env file when present, then the environment.
func Load(files ...string) Config {
	if err := godotenv.Load(files...); err != nil {
		zap.L().Info("no .env file found, using environment only")
	}

	return Config{
		Env:        getEnv("APP_ENV", "development"),
		Port:       getEnv("PORT", "8888"),
		AppURI:     getEnv("APP_URI", "http://localhost:8888"),
		MongoURI:   os.Getenv("MONGO_URI"),
		MongoDB:    getEnv("MONGO_DB", "volunteer"),
		RedisURI:   os.Getenv("REDIS_URI"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		TZName:     getEnv("TZ_NAME", "Local"),
		Storage:    getEnv("STORAGE", "mongo"),
		RateLimit:  getFloat("RATE_LIMIT", 5),
		RateBurst:  getInt("RATE_BURST", 10),
		EnableJobs: getBool("ENABLE_JOBS", true),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
