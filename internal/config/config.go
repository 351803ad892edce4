package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "FLEETCOST"

// Config is the top-level application configuration.
// Values come from FLEETCOST_* environment variables, optionally seeded from
// a .env file; command-line flags override them.
type Config struct {
	// ClustersDir is searched recursively for cluster.yaml descriptors.
	ClustersDir string `envconfig:"CLUSTERS_DIR" default:"config/clusters"`

	// BigQueryProject is the project BigQuery jobs are billed to.
	// The default asks the client library to detect it from credentials.
	BigQueryProject string `envconfig:"BIGQUERY_PROJECT" default:"*detect-project-id*"`

	Sheets SheetsConfig

	// LogLevel is a logrus level name.
	LogLevel string `envconfig:"LOG_LEVEL" default:"warn"`
}

// SheetsConfig holds Google Sheets output settings, read from
// FLEETCOST_SHEETS_* variables.
type SheetsConfig struct {
	// URL is the spreadsheet written to with --output google-sheet.
	URL string `envconfig:"URL"`

	// CredentialsSecret is the sops-encrypted service account key with
	// editor access to the spreadsheet.
	CredentialsSecret string `envconfig:"CREDENTIALS_SECRET" default:"config/secrets/enc-billing-gsheets-writer-key.secret.json"`
}

// Load reads configuration from the environment. When dotenvPath names an
// existing file its variables are loaded first; variables already set in
// the environment take precedence. A missing dotenv file is not an error.
func Load(dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
