package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tcriess/lightspeed-poker/globals"
)

const (
	defaultAdminUser        = "admin"
	defaultIdleExpiryMin    = 60
	defaultSessionCacheSize = 1024
	defaultDeckName         = "fibonacci"
)

// Config is the global configuration object which is filled via the configuration file
// and optionally overridden by environment variables (prefix LSPOKER) and command-line flags.
type Config struct {
	RoomConfig        RoomConfig        `mapstructure:"rooms"`
	DeckConfigs       []DeckConfig      `mapstructure:"deck"`
	OIDCConfigs       []OIDCConfig      `mapstructure:"oidc"`
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	LogLevel          string            `mapstructure:"log_level"`
	AdminUser         string            `mapstructure:"admin_user"`
}

// RoomConfig carries the room lifecycle policy knobs: how long an empty room
// is kept alive, which deck new rooms get by default and how many disconnected
// session tokens are remembered for rejoin.
type RoomConfig struct {
	IdleExpiryMinutes int    `mapstructure:"idle_expiry_minutes"`
	DefaultDeck       string `mapstructure:"default_deck"`
	SessionCacheSize  int    `mapstructure:"session_cache_size"`
}

// A DeckConfig block defines a named card deck selectable at room creation.
type DeckConfig struct {
	Name   string   `mapstructure:"name"`
	Values []string `mapstructure:"values"`
}

// An OIDCConfig object configures an OpenID Connect provider that is used to authenticate users. Users provide
// an ID token and the name of the provider, the authentication is then performed via verification of the token.
type OIDCConfig struct {
	Name        string `mapstructure:"name"`
	ClientId    string `mapstructure:"client_id"`
	ProviderUrl string `mapstructure:"provider_url"` // f.e. "https://accounts.google.com", this is used to construct the discovery url and subsequently discover the openid endpoints
}

// PersistenceConfig configures the persistence backend. Type is one of
// "buntdb", "sqlite" or "postgres"; DSN is the file name (buntdb, sqlite) or
// connection string (postgres). An empty type disables persistence.
type PersistenceConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.StringP("admin-user", "a", "", "id of the admin user")
	flagSet.String("log-level", "", "log level (TRACE, DEBUG, INFO, WARN, ERROR)")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	from := "-"
	to := "_"
	name = strings.Replace(name, from, to, -1)
	return pflag.NormalizedName(name)
}

// ReadConfiguration reads and parses the configuration located at configPath, which can either point to a single TOML
// file or to a directory, in which case all *.toml files in this directory are concatenated. It returns a Config
// object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	viper.SetDefault("admin_user", defaultAdminUser)
	viper.SetDefault("rooms.idle_expiry_minutes", defaultIdleExpiryMin)
	viper.SetDefault("rooms.session_cache_size", defaultSessionCacheSize)
	viper.SetDefault("rooms.default_deck", defaultDeckName)
	err := viper.BindPFlags(flagSet)
	if err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("LSPOKER")
	viper.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := os.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		viper.SetConfigType("toml")
		err = viper.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			globals.AppLogger.Error("could not read config:", "error", err)
		}
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		globals.AppLogger.Error("could not unmarshal config:", "error", err)
	}

	globals.AppLogger.Info("config", "cfg", cfg, "all", viper.AllSettings())
	return &cfg, nil
}
