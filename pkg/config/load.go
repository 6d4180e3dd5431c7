// pkg/config/load.go
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from a file, environment variables, and
// defaults, in increasing precedence of env over file over defaults.
// With an empty configPath it searches for "bulkhooks.yaml" in the
// working directory and $HOME/.bulkhooks; a missing file is then not an
// error. Environment variables use the BULKHOOKS_ prefix with "_" for
// nesting, e.g. BULKHOOKS_DATABASE_DSN.
func LoadConfig(configPath string) (Config, error) {
	v := viper.New()
	cfg := NewDefaultConfig()

	// Required keys get an empty default so viper knows them and resolves
	// their environment variables during Unmarshal.
	v.SetDefault("database.driver", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.pool.maxIdleConns", cfg.Database.Pool.MaxIdleConns)
	v.SetDefault("database.pool.maxOpenConns", cfg.Database.Pool.MaxOpenConns)
	v.SetDefault("database.pool.connMaxLifetime", cfg.Database.Pool.ConnMaxLifetime)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("hooks.deferAfterHooks", cfg.Hooks.DeferAfterHooks)

	v.SetEnvPrefix("BULKHOOKS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("bulkhooks")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.bulkhooks")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return cfg, fmt.Errorf("read configuration file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var details []string
		for _, fieldErr := range err.(validator.ValidationErrors) {
			details = append(details, fmt.Sprintf("field %q failed %q", fieldErr.Namespace(), fieldErr.Tag()))
		}
		return cfg, fmt.Errorf("invalid configuration: %s", strings.Join(details, "; "))
	}

	return cfg, nil
}
