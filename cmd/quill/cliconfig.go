package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alphabot-ai/quill/internal/client"
)

const defaultServerURL = "http://localhost:8080"

// CLIConfig is what the client commands remember between runs.
type CLIConfig struct {
	ServerURL string `json:"server_url"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	Token     string `json:"token,omitempty"`
}

// cliConfigPath honours QUILL_CONFIG, then falls back to ~/.quill/config.json.
func cliConfigPath() (string, error) {
	if p := os.Getenv("QUILL_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".quill", "config.json"), nil
}

func loadCLIConfig() (*CLIConfig, error) {
	path, err := cliConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &CLIConfig{ServerURL: defaultServerURL}, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg CLIConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = defaultServerURL
	}
	return &cfg, nil
}

func saveCLIConfig(cfg *CLIConfig) error {
	path, err := cliConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func loadClient(serverOverride string) (*client.Client, *CLIConfig, error) {
	cfg, err := loadCLIConfig()
	if err != nil {
		return nil, nil, err
	}
	if serverOverride != "" && serverOverride != cfg.ServerURL {
		// A different server never sees the stored token.
		cfg = &CLIConfig{ServerURL: serverOverride}
	}
	c := client.New(cfg.ServerURL)
	c.Token = cfg.Token
	return c, cfg, nil
}

func loadAuthenticatedClient(serverOverride string) (*client.Client, error) {
	c, cfg, err := loadClient(serverOverride)
	if err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		return nil, errors.New("not logged in, run 'quill login' or 'quill register' first")
	}
	return c, nil
}
