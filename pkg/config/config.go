// Package config loads mnemo's runtime configuration: a YAML file
// merged with environment variables and, ultimately, CLI flags (spec
// §6's "environment variables mirror every CLI flag"), following the
// teacher's pkg/config YAML+mergo loading shape.
package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
)

// Config is mnemo's complete runtime configuration (spec §6's CLI
// flag list).
type Config struct {
	DBPath             string `yaml:"db_path"`
	OpenAIAPIKey       string `yaml:"openai_api_key"`
	EmbeddingModel     string `yaml:"embedding_model"`
	Dimensions         int    `yaml:"dimensions"`
	AgentID            string `yaml:"agent_id"`
	OrgID              string `yaml:"org_id"`
	ONNXModelPath      string `yaml:"onnx_model_path"`
	PostgresURL        string `yaml:"postgres_url"`
	RESTPort           int    `yaml:"rest_port"`
	GRPCPort           int    `yaml:"grpc_port"`   // 0 disables the gRPC service
	PGWirePort         int    `yaml:"pgwire_port"` // 0 disables the PostgreSQL wire-dialect service
	IdleTimeoutSeconds int    `yaml:"idle_timeout_seconds"`
	EncryptionKey      string `yaml:"encryption_key"` // 64 hex chars = 32 bytes
	MCPStdio           bool   `yaml:"mcp_stdio"`      // also run the MCP stdio tool server (spec §9)
}

// Defaults returns the baseline configuration applied before any YAML
// file or environment variable is consulted.
func Defaults() *Config {
	return &Config{
		DBPath:             "./mnemo.db",
		EmbeddingModel:     "text-embedding-3-small",
		Dimensions:         1536,
		AgentID:            "default",
		RESTPort:           8081,
		GRPCPort:           0, // 0 disables the gRPC service; REST is always on
		PGWirePort:         0, // 0 disables the PostgreSQL wire-dialect service
		IdleTimeoutSeconds: 0, // 0 disables the idle-timeout watchdog
	}
}

// envVars maps each field to the environment variable spec §6 says
// mirrors its CLI flag.
var envVars = map[string]string{
	"MNEMO_DB_PATH":              "DBPath",
	"MNEMO_OPENAI_API_KEY":       "OpenAIAPIKey",
	"MNEMO_EMBEDDING_MODEL":      "EmbeddingModel",
	"MNEMO_DIMENSIONS":           "Dimensions",
	"MNEMO_AGENT_ID":             "AgentID",
	"MNEMO_ORG_ID":               "OrgID",
	"MNEMO_ONNX_MODEL_PATH":      "ONNXModelPath",
	"MNEMO_POSTGRES_URL":         "PostgresURL",
	"MNEMO_REST_PORT":            "RESTPort",
	"MNEMO_GRPC_PORT":            "GRPCPort",
	"MNEMO_PGWIRE_PORT":          "PGWirePort",
	"MNEMO_IDLE_TIMEOUT_SECONDS": "IdleTimeoutSeconds",
	"MNEMO_ENCRYPTION_KEY":       "EncryptionKey",
	"MNEMO_MCP_STDIO":            "MCPStdio",
}

// Load builds the final Config: defaults, overridden by yamlPath (if
// non-empty and present), overridden by environment variables, per
// the teacher's "built-in, then user YAML, then runtime" merge order
// (pkg/config/loader.go's mergeAgents/mergeMCPServers, generalized
// here to whole-config overlay via mergo instead of per-map merges,
// since Config is a flat struct rather than a set of named registries).
func Load(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, mnemoerr.Validation("reading config file %q: %v", yamlPath, err)
			}
		} else {
			var fromFile Config
			if err := yaml.Unmarshal(ExpandEnv(data), &fromFile); err != nil {
				return nil, mnemoerr.Validation("parsing config file %q: %v", yamlPath, err)
			}
			if err := mergo.Merge(cfg, fromFile, mergo.WithOverride); err != nil {
				return nil, mnemoerr.Internal("merging config file into defaults", err)
			}
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExpandEnv expands ${VAR}/$VAR references in YAML content before
// parsing, matching the teacher's envexpand.go.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}

// applyEnv overlays any set environment variable onto cfg. Only the
// fields envVars names are touched; unset variables leave the
// existing value (default or YAML) untouched.
func applyEnv(cfg *Config) {
	for env, field := range envVars {
		value, ok := os.LookupEnv(env)
		if !ok || value == "" {
			continue
		}
		setField(cfg, field, value)
	}
}

func setField(cfg *Config, field, value string) {
	switch field {
	case "DBPath":
		cfg.DBPath = value
	case "OpenAIAPIKey":
		cfg.OpenAIAPIKey = value
	case "EmbeddingModel":
		cfg.EmbeddingModel = value
	case "Dimensions":
		if n, err := parseInt(value); err == nil {
			cfg.Dimensions = n
		}
	case "AgentID":
		cfg.AgentID = value
	case "OrgID":
		cfg.OrgID = value
	case "ONNXModelPath":
		cfg.ONNXModelPath = value
	case "PostgresURL":
		cfg.PostgresURL = value
	case "RESTPort":
		if n, err := parseInt(value); err == nil {
			cfg.RESTPort = n
		}
	case "GRPCPort":
		if n, err := parseInt(value); err == nil {
			cfg.GRPCPort = n
		}
	case "PGWirePort":
		if n, err := parseInt(value); err == nil {
			cfg.PGWirePort = n
		}
	case "IdleTimeoutSeconds":
		if n, err := parseInt(value); err == nil {
			cfg.IdleTimeoutSeconds = n
		}
	case "EncryptionKey":
		cfg.EncryptionKey = value
	case "MCPStdio":
		cfg.MCPStdio = value == "true" || value == "1"
	}
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

// Validate enforces the structural constraints spec §6's flag list
// implies: a 64-hex-char encryption key (32 bytes) when set, and
// positive dimensions/port values.
func Validate(cfg *Config) error {
	if cfg.Dimensions <= 0 {
		return mnemoerr.Validation("dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.RESTPort <= 0 {
		return mnemoerr.Validation("rest_port must be positive, got %d", cfg.RESTPort)
	}
	if cfg.GRPCPort < 0 {
		return mnemoerr.Validation("grpc_port must not be negative, got %d", cfg.GRPCPort)
	}
	if cfg.PGWirePort < 0 {
		return mnemoerr.Validation("pgwire_port must not be negative, got %d", cfg.PGWirePort)
	}
	if cfg.EncryptionKey != "" {
		raw, err := hex.DecodeString(cfg.EncryptionKey)
		if err != nil {
			return mnemoerr.Validation("encryption_key must be hex-encoded: %v", err)
		}
		if len(raw) != 32 {
			return mnemoerr.Validation("encryption_key must decode to 32 bytes (64 hex chars), got %d", len(raw))
		}
	}
	return nil
}
