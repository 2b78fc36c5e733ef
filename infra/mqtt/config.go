package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Host              string      `json:"host"`
	Port              int         `json:"port"`
	UseTLS            bool        `json:"use_tls"`
	Username          string      `json:"username"`
	Password          string      `json:"password"`
	ClientID          string      `json:"client_id"`
	ClientCert        string      `json:"client_cert"`
	ClientKey         string      `json:"client_key"`
	CABundle          string      `json:"ca_bundle"`
	KeepAliveSeconds  int         `json:"keepalive_seconds"`
	ConnectTimeoutSec int         `json:"connect_timeout_seconds"`
	PublishTimeoutSec int         `json:"publish_timeout_seconds"`
	TLSConfig         *tls.Config `json:"-"`
}

// SetDefaults applies the defaults of the original deployment.
func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 1883
	}
	if c.ClientID == "" {
		c.ClientID = "fleetd"
	}
	if c.KeepAliveSeconds <= 0 {
		c.KeepAliveSeconds = 60
	}
	if c.ConnectTimeoutSec <= 0 {
		c.ConnectTimeoutSec = 10
	}
	if c.PublishTimeoutSec <= 0 {
		c.PublishTimeoutSec = 5
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("broker host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid broker port %d", c.Port)
	}
	return nil
}

// BrokerURL renders the paho broker address.
func (c Config) BrokerURL() string {
	scheme := "tcp"
	if c.UseTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

func (c Config) connectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSec) * time.Second
}

func (c Config) publishTimeout() time.Duration {
	return time.Duration(c.PublishTimeoutSec) * time.Second
}

// LoadTLSConfig builds the TLS configuration. A client certificate pair is
// optional; when no CA bundle is given the system pool is used.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if c.ClientCert != "" || c.ClientKey != "" {
		if c.ClientCert == "" || c.ClientKey == "" {
			return nil, fmt.Errorf("tls config requires both client_cert and client_key")
		}
		cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load cert: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	if c.CABundle != "" {
		caBytes, err := os.ReadFile(c.CABundle)
		if err != nil {
			return nil, fmt.Errorf("read ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("no certificates in ca bundle %s", c.CABundle)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// NewClientOptions builds paho client options from Config. Automatic
// reconnection is disabled on purpose: the health monitor owns retry policy.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.BrokerURL()).SetClientID(cfg.ClientID)
	opts.AutoReconnect = false
	opts.SetKeepAlive(time.Duration(cfg.KeepAliveSeconds) * time.Second)
	opts.SetConnectTimeout(cfg.connectTimeout())
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}
