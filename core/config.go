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
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loadConfigMap fills configMap from, in order of precedence (lowest first): flag defaults, the config file,
// COOLER_ environment variables and flags set on the command line.
func loadConfigMap(configMap *koanf.Koanf, flags *pflag.FlagSet) error {
	// unchanged flags only provide a value for keys that aren't set yet
	if err := loadFromFlags(configMap, flags); err != nil {
		return err
	}
	if err := loadFromFile(configMap, resolveConfigFilePath(flags)); err != nil {
		return err
	}
	if err := loadFromEnv(configMap); err != nil {
		return err
	}
	return loadFromFlags(configMap, flags)
}

func loadFromFile(configMap *koanf.Koanf, filepath string) error {
	if filepath == "" {
		return nil
	}
	if err := configMap.Load(file.Provider(filepath), yaml.Parser()); err != nil {
		// cooler.yaml in the working directory is optional, an explicitly configured file isn't
		if errors.Is(err, os.ErrNotExist) && filepath == defaultConfigFile {
			return nil
		}
		return fmt.Errorf("unable to load config file: %w", err)
	}
	return nil
}

func loadFromEnv(configMap *koanf.Koanf) error {
	return configMap.Load(env.Provider(defaultPrefix, defaultDelimiter, envKey), nil)
}

func loadFromFlags(configMap *koanf.Koanf, flags *pflag.FlagSet) error {
	return configMap.Load(posflag.Provider(flags, defaultDelimiter, configMap), nil)
}

// envKey maps an environment variable to a config key, e.g. COOLER_SSB_RETRY_MAXDELAY to ssb.retry.maxdelay.
func envKey(variable string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(variable, defaultPrefix)), "_", defaultDelimiter)
}

// resolveConfigFilePath returns the config file set by flag, by COOLER_CONFIGFILE or the default, in that order.
func resolveConfigFilePath(flags *pflag.FlagSet) string {
	k := koanf.New(defaultDelimiter)
	// neither provider can fail without a parser
	_ = k.Load(env.Provider(defaultPrefix, defaultDelimiter, envKey), nil)
	_ = k.Load(posflag.Provider(flags, defaultDelimiter, k), nil)
	return k.String(configFileFlag)
}
