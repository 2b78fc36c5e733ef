package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mowbotai/fleetd/infra/credentials"
	"github.com/mowbotai/fleetd/infra/logger"
)

var configureFlags struct {
	host      string
	port      int
	useTLS    bool
	username  string
	password  string
	clientID  string
	keepalive int
}

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Save broker settings to the encrypted credential store",
	RunE:  configure,
}

func init() {
	f := configureCmd.Flags()
	f.StringVar(&configureFlags.host, "host", "127.0.0.1", "broker host")
	f.IntVar(&configureFlags.port, "port", 1883, "broker port")
	f.BoolVar(&configureFlags.useTLS, "tls", false, "connect over TLS")
	f.StringVar(&configureFlags.username, "username", "", "broker username")
	f.StringVar(&configureFlags.password, "password", "", "broker password")
	f.StringVar(&configureFlags.clientID, "client-id", "fleetd", "MQTT client id")
	f.IntVar(&configureFlags.keepalive, "keepalive", 60, "keepalive in seconds")
	rootCmd.AddCommand(configureCmd)
}

func configure(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := credentials.Open(cfg.Credentials, logger.New("configure"))
	if err != nil {
		return fmt.Errorf("credential store: %w", err)
	}
	defer store.Close()

	err = store.Put(cmd.Context(), credentials.BrokerConfig{
		Host:             configureFlags.host,
		Port:             configureFlags.port,
		UseTLS:           configureFlags.useTLS,
		Username:         configureFlags.username,
		Password:         configureFlags.password,
		ClientID:         configureFlags.clientID,
		KeepAliveSeconds: configureFlags.keepalive,
	})
	if err != nil {
		return fmt.Errorf("save broker profile: %w", err)
	}

	scheme := "mqtt"
	if configureFlags.useTLS {
		scheme = "mqtts"
	}
	cmd.Printf("broker profile saved: %s://%s:%d\n", scheme, configureFlags.host, configureFlags.port)
	return nil
}
