package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all pipeline settings.
type Config struct {
	Organization OrganizationConfig `yaml:"organization"`
	GitHub       GitHubConfig       `yaml:"github"`
	Neo4j        Neo4jConfig        `yaml:"neo4j"`
	Staging      StagingConfig      `yaml:"staging"`
	Logging      LoggingConfig      `yaml:"logging"`
	Artifacts    ArtifactsConfig    `yaml:"artifacts"`
}

type OrganizationConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type GitHubConfig struct {
	Token        string   `yaml:"token"`
	Repositories []string `yaml:"repositories"`
	RateLimit    int      `yaml:"rate_limit"` // requests per second
	StartDate    string   `yaml:"start_date"` // overrides the stored run state when set
}

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type StagingConfig struct {
	DSN string `yaml:"dsn"`
}

type LoggingConfig struct {
	Dir string `yaml:"dir"`
}

type ArtifactsConfig struct {
	Workers int `yaml:"workers"`
}

// Default returns defaults for everything that has a sensible one.
// Credentials never have defaults.
func Default() *Config {
	return &Config{
		GitHub: GitHubConfig{
			RateLimit: 5,
		},
		Neo4j: Neo4jConfig{
			Database: "neo4j",
		},
		Logging: LoggingConfig{
			Dir: "logs",
		},
		Artifacts: ArtifactsConfig{
			Workers: 8,
		},
	}
}

// Load reads configuration from .env files, an optional YAML config
// file and the environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("organization", cfg.Organization)
	v.SetDefault("github", cfg.GitHub)
	v.SetDefault("neo4j", cfg.Neo4j)
	v.SetDefault("staging", cfg.Staging)
	v.SetDefault("logging", cfg.Logging)
	v.SetDefault("artifacts", cfg.Artifacts)

	v.SetEnvPrefix("ORGGRAPH")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".orggraph")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file is fine, env vars carry everything.
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Validate checks that everything a pipeline run needs is present.
func (c *Config) Validate() error {
	var missing []string
	if c.Organization.ID == "" {
		missing = append(missing, "ORGANIZATION_ID")
	}
	if c.Organization.Name == "" {
		missing = append(missing, "ORGANIZATION")
	}
	if c.GitHub.Token == "" {
		missing = append(missing, "GITHUB_TOKEN")
	}
	if c.Neo4j.URI == "" {
		missing = append(missing, "NEO4J_URI")
	}
	if c.Neo4j.Password == "" {
		missing = append(missing, "NEO4J_PASSWORD")
	}
	if c.Staging.DSN == "" {
		missing = append(missing, "STAGING_DSN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	if id := os.Getenv("ORGANIZATION_ID"); id != "" {
		cfg.Organization.ID = id
	}
	if name := os.Getenv("ORGANIZATION"); name != "" {
		cfg.Organization.Name = name
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	}
	if repos := os.Getenv("REPOSITORIES"); repos != "" {
		cfg.GitHub.Repositories = splitList(repos)
	}
	if date := os.Getenv("START_DATE"); date != "" {
		if _, err := time.Parse(time.RFC3339, date); err == nil {
			cfg.GitHub.StartDate = date
		}
	}
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Neo4j.URI = uri
	}
	if user := os.Getenv("NEO4J_USERNAME"); user != "" {
		cfg.Neo4j.Username = user
	}
	if password := os.Getenv("NEO4J_PASSWORD"); password != "" {
		cfg.Neo4j.Password = password
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		cfg.Neo4j.Database = db
	}
	if dsn := os.Getenv("STAGING_DSN"); dsn != "" {
		cfg.Staging.DSN = dsn
	}
	if dir := os.Getenv("LOG_DIR"); dir != "" {
		cfg.Logging.Dir = dir
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
