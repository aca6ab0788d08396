package config

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/nftlane/nft-bridge-service/claimtxman"
	"github.com/nftlane/nft-bridge-service/db"
	"github.com/nftlane/nft-bridge-service/etherman"
	"github.com/nftlane/nft-bridge-service/log"
	"github.com/nftlane/nft-bridge-service/metrics"
	"github.com/nftlane/nft-bridge-service/server"
	"github.com/nftlane/nft-bridge-service/synchronizer"
	"github.com/spf13/viper"
)

// Config struct
type Config struct {
	Log            log.Config
	SyncDB         db.Config
	Etherman       etherman.Config
	Synchronizer   synchronizer.Config
	ClaimTxManager claimtxman.Config
	BridgeServer   server.Config
	Metrics        metrics.Config
}

// Load loads the configuration. Values come from the defaults, then the
// config file if one is given, then NFTLANE_-prefixed environment
// variables, each layer overriding the previous one.
func Load(configFilePath string) (*Config, error) {
	var cfg Config
	viper.SetConfigType("toml")

	err := viper.ReadConfig(bytes.NewBuffer([]byte(DefaultValues)))
	if err != nil {
		return nil, err
	}
	err = viper.Unmarshal(&cfg, viper.DecodeHook(mapstructure.TextUnmarshallerHookFunc()))
	if err != nil {
		return nil, err
	}
	if configFilePath != "" {
		dirName, fileName := filepath.Split(configFilePath)

		fileExtension := strings.TrimPrefix(filepath.Ext(fileName), ".")
		fileNameWithoutExtension := strings.TrimSuffix(fileName, "."+fileExtension)

		viper.AddConfigPath(dirName)
		viper.SetConfigName(fileNameWithoutExtension)
		viper.SetConfigType(fileExtension)
	}
	viper.AutomaticEnv()
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.SetEnvPrefix("NFTLANE")
	err = viper.ReadInConfig()
	if err != nil {
		_, ok := err.(viper.ConfigFileNotFoundError)
		if ok {
			log.Infof("config file not found")
		} else {
			log.Infof("error reading config file: %v", err)
			return nil, err
		}
	}

	err = viper.Unmarshal(&cfg, viper.DecodeHook(mapstructure.TextUnmarshallerHookFunc()))
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
