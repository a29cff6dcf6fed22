package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/joho/godotenv"
)

// Config holds all service configuration.
// Environment determines whether secrets load from env vars (development)
// or from GCP Secret Manager (production).
type Config struct {
	Addr        string
	Environment string // "development" or "production"

	// External marketplace API consumed by every page of the storefront.
	BackendURL string

	// Cart mutation contract exposed by the deployed backend.
	// "upsert" means the backend accepts PUT-with-absolute-quantity;
	// "delete-add" means set-quantity must decompose into DELETE then POST.
	CartContract string

	// Secret used to verify bearer tokens issued by the identity provider.
	JWTSecret string

	// GCP settings (required in production)
	GCPProject string
	SecretName string

	// Threshold below which a part counts as low stock on the admin side.
	LowStockMin int
}

// secretPayload is the JSON document stored in Secret Manager.
type secretPayload struct {
	JWTSecret string `json:"jwtSecret"`
}

// Load reads configuration from the environment. A .env file is honored
// when present. In production the JWT secret is fetched from Secret
// Manager instead of the environment.
func Load(ctx context.Context) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:         os.Getenv("STOREFRONT_ADDR"),
		Environment:  os.Getenv("ENVIRONMENT"),
		BackendURL:   os.Getenv("BACKEND_API_URL"),
		CartContract: os.Getenv("CART_CONTRACT"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		GCPProject:   os.Getenv("GCP_PROJECT"),
		SecretName:   os.Getenv("JWT_SECRET_NAME"),
		LowStockMin:  10,
	}

	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.BackendURL == "" {
		cfg.BackendURL = "http://localhost:3001"
	}
	if cfg.CartContract == "" {
		cfg.CartContract = "upsert"
	}
	if v := os.Getenv("LOW_STOCK_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.LowStockMin = n
		}
	}

	if cfg.CartContract != "upsert" && cfg.CartContract != "delete-add" {
		return Config{}, fmt.Errorf("unknown CART_CONTRACT %q", cfg.CartContract)
	}

	if cfg.Environment == "production" {
		if err := cfg.loadFromSecretManager(ctx); err != nil {
			return Config{}, err
		}
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is not set")
	}

	return cfg, nil
}

// loadFromSecretManager fetches the token verification secret from GCP
// Secret Manager. Secret name format:
// projects/{project}/secrets/{name}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	if c.GCPProject == "" || c.SecretName == "" {
		return fmt.Errorf("GCP_PROJECT and JWT_SECRET_NAME are required in production")
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", c.GCPProject, c.SecretName)
	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", name, err)
	}

	var payload secretPayload
	if err := json.Unmarshal(result.Payload.Data, &payload); err != nil {
		// plain-text secrets are accepted too
		c.JWTSecret = string(result.Payload.Data)
		return nil
	}
	if payload.JWTSecret == "" {
		return fmt.Errorf("secret %s carries no jwtSecret field", name)
	}
	c.JWTSecret = payload.JWTSecret
	return nil
}
