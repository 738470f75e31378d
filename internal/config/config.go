package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "UPLOADHUB"

var configFilePath string

// SetConfig는 실행 환경에 맞는 설정 파일을 읽어 Conf에 반영한다
func SetConfig(goEnv string) {
	log.Info().Msgf("Loading configuration for environment: %s", goEnv)

	configFileName := "config.dev"
	if goEnv == "production" {
		configFileName = "config.prod"
	}

	conf, path, err := Load("config", configFileName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	Conf = conf
	configFilePath = path
	log.Info().Msgf("Config file loaded: %s", configFilePath)
}

// SetConfigFile은 지정한 파일 하나만 읽는다 (CLI용)
func SetConfigFile(file string) error {
	conf, path, err := Load(file, "")
	if err != nil {
		return err
	}
	Conf = conf
	configFilePath = path
	return nil
}

// Load reads config from dir/name.yaml, or from the file at dir when name is empty.
// .env is loaded first; UPLOADHUB_* variables override file values.
func Load(dir, name string) (Config, string, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if name == "" {
		v.SetConfigFile(dir)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName(name)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, "", fmt.Errorf("failed to read config file: %w", err)
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return Config{}, "", fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return conf, v.ConfigFileUsed(), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.webdav_enabled", false)
	v.SetDefault("server.webdav_allow_anonymous", false)
	v.SetDefault("server.webdav_user", "")
	v.SetDefault("server.webdav_password_hash", "")
	v.SetDefault("database.url", "data/uploadhub.db")
	v.SetDefault("uploads.conflict_policy", "skip")
	v.SetDefault("uploads.follow_symlinks", false)
	v.SetDefault("uploads.create_missing_roots", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// SaveConfig는 설정을 YAML 파일에 저장합니다
func SaveConfig() error {
	if configFilePath == "" {
		return fmt.Errorf("config file path is not set")
	}

	data, err := yaml.Marshal(&Conf)
	if err != nil {
		return err
	}

	if err := os.WriteFile(configFilePath, data, 0644); err != nil {
		return err
	}

	log.Info().Msgf("Configuration saved to %s", configFilePath)
	return nil
}
