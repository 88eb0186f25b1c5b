package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del agente.
type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	Gas     GasConfig     `yaml:"gas"`
	Notify  NotifyConfig  `yaml:"notify"`
	Storage StorageConfig `yaml:"storage"`
	Status  StatusConfig  `yaml:"status"`
	Log     LogConfig     `yaml:"log"`
}

// AgentConfig controla el comportamiento del loop de decisión.
type AgentConfig struct {
	RPCURL              string  `yaml:"rpc_url"`
	ContractAddress     string  `yaml:"contract_address"`
	FactoryAddress      string  `yaml:"factory_address"`
	UseFactory          bool    `yaml:"use_factory"`
	MerchantOwner       string  `yaml:"merchant_owner"`
	PollIntervalSeconds int     `yaml:"poll_interval_seconds"`
	MinProfitThreshold  float64 `yaml:"min_profit_threshold"` // en ETH; withdraw solo si profit > threshold (estricto)
	UseLLM              bool    `yaml:"use_llm"`
	Model               string  `yaml:"model"`
	PrivateKeyEnv       string  `yaml:"private_key_env"`
}

// GasConfig controla el precio de gas legacy (sin dynamic fees).
type GasConfig struct {
	MaxFeeGwei int64 `yaml:"max_fee_gwei"`
}

// NotifyConfig controla el envío de eventos al backend.
type NotifyConfig struct {
	BackendAPI          string `yaml:"backend_api"`
	EnableNotifications bool   `yaml:"enable_notifications"`
}

// StorageConfig controla dónde se persiste la memoria de merchants.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// StatusConfig controla el status file compartido y el API de solo lectura.
type StatusConfig struct {
	File       string `yaml:"file"`
	ListenAddr string `yaml:"listen_addr"` // usado por statusd
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si
// existe. Verifica los campos obligatorios: un fallo aquí es fatal al
// arrancar, nunca durante el run.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// PollInterval devuelve el intervalo de polling como time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Agent.PollIntervalSeconds) * time.Second
}

// PrivateKey lee la clave privada del env var configurado.
func (c *Config) PrivateKey() (string, error) {
	key := os.Getenv(c.Agent.PrivateKeyEnv)
	if key == "" {
		return "", fmt.Errorf("missing private key in env var %s", c.Agent.PrivateKeyEnv)
	}
	return key, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.Agent.RPCURL = v
	}
	if v := os.Getenv("BACKEND_API"); v != "" {
		cfg.Notify.BackendAPI = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Agent.PollIntervalSeconds <= 0 {
		cfg.Agent.PollIntervalSeconds = 30
	}
	if cfg.Agent.MinProfitThreshold <= 0 {
		cfg.Agent.MinProfitThreshold = 0.2
	}
	if cfg.Agent.PrivateKeyEnv == "" {
		cfg.Agent.PrivateKeyEnv = "AI_AGENT_PRIVATE_KEY"
	}
	if cfg.Gas.MaxFeeGwei <= 0 {
		cfg.Gas.MaxFeeGwei = 10
	}
	if cfg.Notify.BackendAPI == "" {
		cfg.Notify.BackendAPI = "http://localhost:8000/api/logs"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "merchant_memory.db"
	}
	if cfg.Status.File == "" {
		cfg.Status.File = "agent_status.json"
	}
	if cfg.Status.ListenAddr == "" {
		cfg.Status.ListenAddr = ":8000"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// validate comprueba los campos sin default razonable.
func (c *Config) validate() error {
	if c.Agent.RPCURL == "" {
		return fmt.Errorf("agent.rpc_url is required")
	}
	if c.Agent.UseFactory {
		if c.Agent.FactoryAddress == "" {
			return fmt.Errorf("agent.factory_address is required with use_factory")
		}
	} else if c.Agent.ContractAddress == "" {
		return fmt.Errorf("agent.contract_address is required")
	}
	return nil
}
