// Package credentials persists MQTT broker settings in an encrypted SQLite
// store so secrets never sit on disk in clear text.
package credentials

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mowbotai/fleetd/infra/logger"
)

const (
	brokerKey = "broker"

	dbFilePerm     = 0o600
	dbDirPerm      = 0o750
	pingTimeout    = 5 * time.Second
	msPerSecond    = 1000
	defaultDBPath  = "data/secure_config.db"
	defaultKeyPath = "data/encryption.key"
	defaultBusySec = 5
)

// BrokerConfig is the persisted broker profile. Field names mirror the wire
// shape used by the configure flow.
type BrokerConfig struct {
	Host             string `json:"host"`
	Port             int    `json:"port"`
	UseTLS           bool   `json:"use_tls"`
	Username         string `json:"user"`
	Password         string `json:"password"`
	KeepAliveSeconds int    `json:"keepalive"`
	ClientID         string `json:"client_id"`
}

// DefaultBrokerConfig is what Get returns before the first configure run.
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		Host:             "127.0.0.1",
		Port:             1883,
		KeepAliveSeconds: 60,
		ClientID:         "fleetd",
	}
}

// Config locates the database and key files.
type Config struct {
	Path           string `json:"path"`
	KeyPath        string `json:"key_path"`
	BusyTimeoutSec int    `json:"busy_timeout_sec"`
}

func (c *Config) SetDefaults() {
	if c.Path == "" {
		c.Path = defaultDBPath
	}
	if c.KeyPath == "" {
		c.KeyPath = defaultKeyPath
	}
	if c.BusyTimeoutSec <= 0 {
		c.BusyTimeoutSec = defaultBusySec
	}
}

// Store reads and writes the encrypted broker profile.
type Store struct {
	db  *sql.DB
	key []byte
	log logger.Logger
}

// Open prepares the database file (WAL, single writer, 0600) and resolves
// the encryption key.
func Open(cfg Config, log logger.Logger) (*Store, error) {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), dbDirPerm); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		cfg.Path, cfg.BusyTimeoutSec*msPerSecond)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS secure_config (
			config_key TEXT PRIMARY KEY,
			payload    BLOB NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// might not exist yet on a fresh database, set again to be sure
	_ = os.Chmod(cfg.Path, dbFilePerm)

	key, err := loadKey(cfg.KeyPath)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, key: key, log: log}, nil
}

// Put encrypts and upserts the broker profile.
func (s *Store) Put(ctx context.Context, bc BrokerConfig) error {
	plaintext, err := json.Marshal(bc)
	if err != nil {
		return fmt.Errorf("encoding broker config: %w", err)
	}
	blob, err := seal(s.key, plaintext)
	if err != nil {
		return fmt.Errorf("encrypting broker config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO secure_config (config_key, payload, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(config_key) DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`,
		brokerKey, blob)
	if err != nil {
		return fmt.Errorf("storing broker config: %w", err)
	}
	s.log.Infof("broker configuration saved")
	return nil
}

// Get decrypts the stored profile. Before the first Put it returns
// DefaultBrokerConfig. A blob that cannot be decrypted, typically after a
// key change, reports ErrConfigCorrupt.
func (s *Store) Get(ctx context.Context) (BrokerConfig, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM secure_config WHERE config_key = ?`, brokerKey).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultBrokerConfig(), nil
	}
	if err != nil {
		return BrokerConfig{}, fmt.Errorf("loading broker config: %w", err)
	}

	plaintext, err := open(s.key, blob)
	if err != nil {
		return BrokerConfig{}, err
	}
	var bc BrokerConfig
	if err := json.Unmarshal(plaintext, &bc); err != nil {
		return BrokerConfig{}, fmt.Errorf("%w: %v", ErrConfigCorrupt, err)
	}
	return bc, nil
}

// Configured reports whether a broker profile has been saved.
func (s *Store) Configured(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM secure_config WHERE config_key = ?`, brokerKey).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking broker config: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
