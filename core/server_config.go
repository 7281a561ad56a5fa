/*
 * Copyright (C) 2026 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package core

import (
	"fmt"

	"github.com/knadh/koanf/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "cooler.yaml"
const configFileFlag = "configfile"

const defaultPrefix = "COOLER_"
const defaultDelimiter = "."

// ServerConfig has global server settings.
type ServerConfig struct {
	Verbosity    string     `koanf:"verbosity"`
	LoggerFormat string     `koanf:"loggerformat"`
	Datadir      string     `koanf:"datadir"`
	HTTP         HTTPConfig `koanf:"http"`
	configMap    *koanf.Koanf
}

// HTTPConfig contains configuration for the HTTP interface serving status and metrics.
type HTTPConfig struct {
	// Address holds the interface address the HTTP service must be bound to, in the format of `interface:port` (e.g. localhost:5555).
	Address string `koanf:"address"`
}

// NewServerConfig creates an initialized empty server config
func NewServerConfig() *ServerConfig {
	return &ServerConfig{
		configMap: koanf.New(defaultDelimiter),
	}
}

// Load loads the server config, follows the load order of configfile, env vars and then commandline param
func (ngc *ServerConfig) Load(flags *pflag.FlagSet) error {
	if err := loadConfigMap(ngc.configMap, flags); err != nil {
		return err
	}

	if err := ngc.configMap.UnmarshalWithConf("", ngc, koanf.UnmarshalConf{
		FlatPaths: false,
	}); err != nil {
		return err
	}

	lvl, err := logrus.ParseLevel(ngc.Verbosity)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)

	switch ngc.LoggerFormat {
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid formatter: '%s'", ngc.LoggerFormat)
	}

	return nil
}

// FlagSet returns the default server flags
func FlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("server", pflag.ContinueOnError)
	flagSet.String(configFileFlag, defaultConfigFile, "Cooler config file")
	flagSet.String("verbosity", "info", "Log level (trace, debug, info, warn, error)")
	flagSet.String("loggerformat", "text", "Log format (text, json)")
	flagSet.String("datadir", "./data", "Directory where the local Scuttlebutt server stores its files.")
	flagSet.String("http.address", "localhost:1323", "Address and port the status and metrics endpoints are served on")
	return flagSet
}

// PrintConfig returns the current config as YAML document
func (ngc *ServerConfig) PrintConfig() string {
	data, err := yaml.Marshal(ngc.configMap.Raw())
	if err != nil {
		return fmt.Sprintf("unable to render config: %s", err)
	}
	return string(data)
}

// InjectIntoEngine takes the loaded config and sets the engine's config struct
func (ngc *ServerConfig) InjectIntoEngine(e Injectable) error {
	return ngc.configMap.UnmarshalWithConf(e.ConfigKey(), e.Config(), koanf.UnmarshalConf{
		FlatPaths: false,
	})
}
