package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load config from file into the config struct, config must be a pointer to the config struct.
// Values already set in the struct act as defaults. A .env file next to the config file, if any,
// is loaded into the environment first; environment variables override the file with "." replaced by "_".
func Load(file string, config any) error {
	if err := loadDotEnv(filepath.Join(filepath.Dir(file), ".env")); err != nil {
		return err
	}

	v := viper.New()
	m := make(map[string]any)

	if err := mapstructure.Decode(config, &m); err != nil {
		return fmt.Errorf("mapstructure: %v", err)
	}

	// Defaults are registered key by key so environment variables can override
	// keys the config file leaves out.
	if err := setDefaults(v, "", m); err != nil {
		return err
	}

	v.SetConfigFile(file)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config from file %s: %v", file, err)
	}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config: %v", err)
	}

	return nil
}

func setDefaults(v *viper.Viper, prefix string, m map[string]any) error {
	for k, val := range m {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}

		if rv := reflect.Indirect(reflect.ValueOf(val)); rv.Kind() == reflect.Struct {
			nested := make(map[string]any)
			if err := mapstructure.Decode(rv.Interface(), &nested); err != nil {
				return fmt.Errorf("mapstructure %s: %v", key, err)
			}
			val = nested
		}

		if nested, ok := val.(map[string]any); ok {
			if err := setDefaults(v, key, nested); err != nil {
				return err
			}
			continue
		}

		v.SetDefault(key, val)
	}

	return nil
}

// loadDotEnv never overrides variables that are already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %v", path, err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("godotenv %s: %v", path, err)
	}

	return nil
}
