package app

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/automator/internal/config"
	"github.com/agentstation/automator/pkg/constants"
)

// Environment variables read by the CLI. The GITHUB_* names are provided by
// GitHub Actions runners.
const (
	EnvToken          = "GITHUB_TOKEN"
	EnvReadToken      = "GITHUB_TOKEN_READ_REPOS"
	EnvRepository     = "GITHUB_REPOSITORY"
	EnvOutput         = "GITHUB_OUTPUT"
	EnvWorkspace      = "GITHUB_WORKSPACE"
	EnvAPIURL         = "GITHUB_API_URL"
	EnvServerURL      = "GITHUB_SERVER_URL"
	EnvVersions       = "AUTOMATOR_VERSIONS"
	EnvConfigOverride = "AUTOMATOR_CONFIG_OVERRIDE"
)

// Config holds the CLI settings loaded from flags, environment variables
// and .env files. The engine configuration itself lives in ConfigFile.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool

	// Engine configuration
	ConfigFile     string
	ConfigOverride string
	Versions       string
	WorkDir        string
	DryRun         bool

	// GitHub
	Repository string
	Token      string
	ReadToken  string
	APIURL     string
	ServerURL  string
	OutputFile string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables
// 3. .env files
// 4. Defaults
func LoadConfig() (*Config, error) {
	// .env files must be loaded before Viper binds the environment
	loadEnvFiles()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	workDir := getEnvOrDefault(EnvWorkspace, ".")
	return &Config{
		ConfigFile:     constants.DefaultConfigPath,
		ConfigOverride: config.GetString(EnvConfigOverride),
		Versions:       config.GetString(EnvVersions),
		WorkDir:        workDir,

		Repository: config.GetString(EnvRepository),
		Token:      config.GetToken(EnvToken),
		ReadToken:  config.GetToken(EnvReadToken, EnvToken),
		APIURL:     getEnvOrDefault(EnvAPIURL, constants.GitHubAPIURL),
		ServerURL:  getEnvOrDefault(EnvServerURL, constants.GitHubURL),
		OutputFile: config.GetString(EnvOutput),

		LogLevel:  os.Getenv("LOG_LEVEL"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}, nil
}

// ConfigPath returns the engine configuration path; relative paths are
// resolved against the GitOps checkout.
func (c *Config) ConfigPath() string {
	if filepath.IsAbs(c.ConfigFile) {
		return c.ConfigFile
	}
	return filepath.Join(c.WorkDir, c.ConfigFile)
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
