// Package config loads process configuration from the environment, with
// .env.local picked up for local development.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/dialwatch/dialwatch/telephony"
)

type Config struct {
	Addr string `envconfig:"ADDR" default:":8000"`
	Mode string `envconfig:"MODE" default:"development"`

	// Agent dispatch API.
	AgentName         string `envconfig:"AGENT_NAME" default:"outbound-caller"`
	DispatchURL       string `envconfig:"DISPATCH_URL"`
	DispatchAPIKey    string `envconfig:"DISPATCH_API_KEY"`
	DispatchAPISecret string `envconfig:"DISPATCH_API_SECRET"`

	// Local SIP endpoint.
	SIPTransport  string `envconfig:"SIP_TRANSPORT" default:"udp"`
	SIPListenAddr string `envconfig:"SIP_LISTEN_ADDRESS" default:"0.0.0.0"`
	SIPPort       int    `envconfig:"SIP_PORT" default:"5060"`

	// Outbound trunk.
	TrunkHost    string `envconfig:"SIP_TRUNK_HOST"`
	TrunkPort    int    `envconfig:"SIP_TRUNK_PORT"`
	TrunkID      string `envconfig:"SIP_OUTBOUND_TRUNK_ID"`
	CallerNumber string `envconfig:"CALLER_NUMBER"`

	// Carrier account, used by trunk provisioning.
	CarrierAccountSID  string `envconfig:"CARRIER_ACCOUNT_SID"`
	CarrierAuthToken   string `envconfig:"CARRIER_AUTH_TOKEN"`
	CarrierPhoneNumber string `envconfig:"CARRIER_PHONE_NUMBER"`
	CarrierTrunkingURL string `envconfig:"CARRIER_TRUNKING_URL" default:"https://trunking.twilio.com/v1"`
	CarrierNumbersURL  string `envconfig:"CARRIER_NUMBERS_URL"`
	PlatformSIPURI     string `envconfig:"PLATFORM_SIP_URI"`
}

// Load reads .env.local if present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	return &cfg, nil
}

// Trunk returns the outbound trunk settings in driver form.
func (c *Config) Trunk() telephony.TrunkConfig {
	return telephony.TrunkConfig{
		Host:         c.TrunkHost,
		Port:         c.TrunkPort,
		TrunkID:      c.TrunkID,
		CallerNumber: c.CallerNumber,
	}
}
