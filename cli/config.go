package cli

import (
	"github.com/spf13/viper"
)

// Config keys. The config file lives at ~/.config/picsou/config.yaml and
// every key can be overridden through a PICSOU_* environment variable.
const (
	keyFile     = "file"
	keyCurrency = "currency"
)

func init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.config/picsou")
	viper.SetEnvPrefix("picsou")
	viper.AutomaticEnv()

	viper.SetDefault(keyCurrency, "EUR")

	// A missing config file is fine; flags and defaults cover everything.
	_ = viper.ReadInConfig()
}

func configuredFile() string {
	return viper.GetString(keyFile)
}

func configuredCurrency() string {
	return viper.GetString(keyCurrency)
}
