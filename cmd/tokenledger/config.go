package main

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	ledger "github.com/zkrune/tokenledger"
	"github.com/zkrune/tokenledger/types"
)

// Store drivers accepted in store.driver.
const (
	driverMemory   = "memory"
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
	driverMongo    = "mongo"
	driverLevelDB  = "leveldb"
)

// Config is the process configuration.
type Config struct {
	Server struct {
		Addr            string        `mapstructure:"addr"             yaml:"addr"`
		MetricsPath     string        `mapstructure:"metrics_path"     yaml:"metrics_path"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	} `mapstructure:"server" yaml:"server"`

	Store struct {
		Driver string `mapstructure:"driver" yaml:"driver"`
		// DSN is a file path for sqlite and leveldb, a connection string
		// for postgres and a URI for mongo.
		DSN string `mapstructure:"dsn" yaml:"dsn"`
	} `mapstructure:"store" yaml:"store"`

	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	Audit         bool          `mapstructure:"audit"          yaml:"audit"`

	Ledger ledger.Config `mapstructure:"ledger" yaml:"ledger"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	var cfg Config
	cfg.Server.Addr = ":8080"
	cfg.Server.MetricsPath = "/metrics"
	cfg.Server.ShutdownTimeout = 15 * time.Second
	cfg.Store.Driver = driverMemory
	cfg.SweepInterval = ledger.DefaultSweepInterval
	cfg.Audit = true
	cfg.Ledger = ledger.DefaultConfig()
	return cfg
}

// envKeys can be set as TOKENLEDGER_<KEY> with dots as underscores.
var envKeys = []string{
	"server.addr",
	"server.metrics_path",
	"server.shutdown_timeout",
	"store.driver",
	"store.dsn",
	"sweep_interval",
	"audit",
}

// LoadConfig reads path (if any) and the environment over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("TOKENLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return cfg, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		amountDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the process settings and the ledger economics.
func (c Config) Validate() error {
	var errs ledger.MultiError
	switch c.Store.Driver {
	case driverMemory:
	case driverSQLite, driverPostgres, driverMongo, driverLevelDB:
		if c.Store.DSN == "" {
			errs.Add(ledger.ValidationError{Field: "store.dsn", Message: "required for driver " + c.Store.Driver})
		}
	default:
		errs.Add(ledger.ValidationError{Field: "store.driver", Message: fmt.Sprintf("unknown driver %q", c.Store.Driver)})
	}
	if c.Server.Addr == "" {
		errs.Add(ledger.ValidationError{Field: "server.addr", Message: "required"})
	}
	if err := c.Ledger.Validate(); err != nil {
		var me ledger.MultiError
		if errors.As(err, &me) {
			for _, e := range me.Errors {
				errs.Add(e)
			}
		} else {
			errs.Add(err)
		}
	}
	return errs.ErrOrNil()
}

var amountType = reflect.TypeFor[types.Amount]()

// amountDecodeHook reads token amounts written as YAML numbers or strings.
// Numbers are whole or fractional tokens, never base units.
func amountDecodeHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, t reflect.Type, data any) (any, error) {
		if t != amountType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return types.ParseAmount(v)
		case int:
			return types.ParseAmount(strconv.Itoa(v))
		case int64:
			return types.ParseAmount(strconv.FormatInt(v, 10))
		case uint64:
			return types.ParseAmount(strconv.FormatUint(v, 10))
		case float64:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("invalid amount %v", v)
			}
			return types.ParseAmount(strconv.FormatFloat(v, 'f', -1, 64))
		default:
			return data, nil
		}
	}
}

func configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
}
