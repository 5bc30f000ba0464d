package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Transfer modes.
const (
	TransferCustody = "custody"
	TransferSPL     = "spl"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type DatabaseSettings struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	TimeZone string `yaml:"timezone"`
}

// DSN renders the settings as a PostgreSQL connection string.
func (d DatabaseSettings) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone)
}

type RabbitMQSettings struct {
	Host          string `yaml:"host"`
	Port          string `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	InboundQueue  string `yaml:"inbound_queue"`
	OutboundQueue string `yaml:"outbound_queue"`
}

func (r RabbitMQSettings) Enabled() bool {
	return r.Host != ""
}

func (r RabbitMQSettings) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", r.User, r.Password, r.Host, r.Port)
}

type SolanaSettings struct {
	RPC          string   `yaml:"rpc"`
	HealthRPCs   []string `yaml:"health_rpcs"`
	Mint         string   `yaml:"mint"`
	TransferMode string   `yaml:"transfer_mode"`
	TransferRPS  int      `yaml:"transfer_rps"`
	LocalChainID uint32   `yaml:"local_chain_id"`
}

type KeystoreSettings struct {
	Dir      string `yaml:"dir"`
	Password string `yaml:"password"`
	Custody  string `yaml:"custody"`
}

type APISettings struct {
	Port           string   `yaml:"port"`
	RateLimit      float64  `yaml:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// Relayers are the base58 keys allowed to deliver cross-chain messages.
	Relayers []string `yaml:"relayers"`
}

type SchedulerSettings struct {
	Cron      string `yaml:"cron"`
	Authority string `yaml:"authority"`
}

type RelaySettings struct {
	URL string `yaml:"url"`
}

type LogSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Settings struct {
	Storage   string            `yaml:"storage"`
	Database  DatabaseSettings  `yaml:"database"`
	RabbitMQ  RabbitMQSettings  `yaml:"rabbitmq"`
	Solana    SolanaSettings    `yaml:"solana"`
	Keystore  KeystoreSettings  `yaml:"keystore"`
	API       APISettings       `yaml:"api"`
	Scheduler SchedulerSettings `yaml:"scheduler"`
	Relay     RelaySettings     `yaml:"relay"`
	Log       LogSettings       `yaml:"log"`
}

// Defaults returns the settings used when neither the file nor the
// environment sets a value.
func Defaults() Settings {
	return Settings{
		Storage: StoragePostgres,
		Database: DatabaseSettings{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Name:     "omnivault",
			SSLMode:  "disable",
			TimeZone: "UTC",
		},
		RabbitMQ: RabbitMQSettings{
			Port:          "5672",
			InboundQueue:  "omnivault_inbound",
			OutboundQueue: "omnivault_outbound",
		},
		Solana: SolanaSettings{
			RPC:          "https://api.mainnet-beta.solana.com",
			TransferMode: TransferCustody,
			TransferRPS:  5,
			LocalChainID: 30168,
		},
		Keystore: KeystoreSettings{
			Dir: "configs/keystore",
		},
		API: APISettings{
			Port:      "8080",
			RateLimit: 10,
			RateBurst: 20,
		},
		Scheduler: SchedulerSettings{
			Cron: "@every 1m",
		},
		Log: LogSettings{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Settings, error) {
	return LoadWithEnv(path, os.Getenv)
}

func LoadWithEnv(path string, getenv func(string) string) (Settings, error) {
	s := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return s, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &s); err != nil {
				return s, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&s, getenv); err != nil {
		return s, err
	}
	return s, s.Validate()
}

func applyEnv(s *Settings, getenv func(string) string) error {
	strs := map[string]*string{
		"OMNIVAULT_STORAGE":      &s.Storage,
		"DB_HOST":                &s.Database.Host,
		"DB_PORT":                &s.Database.Port,
		"DB_USER":                &s.Database.User,
		"DB_PASSWORD":            &s.Database.Password,
		"DB_NAME":                &s.Database.Name,
		"DB_SSLMODE":             &s.Database.SSLMode,
		"RABBITMQ_HOST":          &s.RabbitMQ.Host,
		"RABBITMQ_PORT":          &s.RabbitMQ.Port,
		"RABBITMQ_USER":          &s.RabbitMQ.User,
		"RABBITMQ_PASSWORD":      &s.RabbitMQ.Password,
		"RABBITMQ_INBOUND_QUEUE": &s.RabbitMQ.InboundQueue,
		"DEFAULT_SOLANA_RPC":     &s.Solana.RPC,
		"SOLANA_MINT":            &s.Solana.Mint,
		"TRANSFER_MODE":          &s.Solana.TransferMode,
		"KEYSTORE_DIR":           &s.Keystore.Dir,
		"KEYSTORE_PASSWORD":      &s.Keystore.Password,
		"CUSTODY_ADDRESS":        &s.Keystore.Custody,
		"PORT":                   &s.API.Port,
		"SCHEDULER_CRON":         &s.Scheduler.Cron,
		"SCHEDULER_AUTHORITY":    &s.Scheduler.Authority,
		"RELAY_URL":              &s.Relay.URL,
		"LOG_LEVEL":              &s.Log.Level,
		"LOG_FORMAT":             &s.Log.Format,
	}
	for name, dst := range strs {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		s.API.AllowedOrigins = splitList(v)
	}
	if v := getenv("RELAYERS"); v != "" {
		s.API.Relayers = splitList(v)
	}
	if v := getenv("API_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("API_RATE_LIMIT: %w", err)
		}
		s.API.RateLimit = f
	}
	if v := getenv("API_RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("API_RATE_BURST: %w", err)
		}
		s.API.RateBurst = n
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate rejects combinations the services cannot start with.
func (s Settings) Validate() error {
	switch s.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unknown storage %q", s.Storage)
	}
	switch s.Solana.TransferMode {
	case TransferCustody:
	case TransferSPL:
		if s.Solana.Mint == "" || s.Keystore.Custody == "" {
			return errors.New("spl transfer mode needs solana.mint and keystore.custody")
		}
	default:
		return fmt.Errorf("unknown transfer mode %q", s.Solana.TransferMode)
	}
	if s.API.RateLimit <= 0 || s.API.RateBurst <= 0 {
		return errors.New("api rate limit and burst must be positive")
	}
	return nil
}
