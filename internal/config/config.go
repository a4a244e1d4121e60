// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config defines the global configuration structure
type Config struct {
	Relay     RelayConfig     `mapstructure:"relay"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Log       LogConfig       `mapstructure:"log"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// RelayConfig defines the relay board relayctl talks to.
// Line speed and timing are fixed by the protocol and not configurable.
type RelayConfig struct {
	Device  string `mapstructure:"device"`
	SlaveID int    `mapstructure:"slave_id"`
}

// SimulatorConfig defines the simulated relay board served by relaysim.
type SimulatorConfig struct {
	Serial       SerialConfig      `mapstructure:"serial"`
	SlaveID      int               `mapstructure:"slave_id"`
	ResponseSize int               `mapstructure:"response_size"` // Pad replies to this many bytes
	Fault        FaultConfig       `mapstructure:"fault"`
	Persistence  PersistenceConfig `mapstructure:"persistence"`
}

// FaultConfig makes the simulator answer one channel with a wrong function code.
type FaultConfig struct {
	Channel      int `mapstructure:"channel"` // 0 disables
	FunctionCode int `mapstructure:"function_code"`
}

// PersistenceConfig defines data storage settings
type PersistenceConfig struct {
	Type string `mapstructure:"type"` // "memory", "mmap", "file"
	Path string `mapstructure:"path"` // File path for "mmap" and "file" types
}

// SerialConfig defines RTU settings
type SerialConfig struct {
	Device   string        `mapstructure:"device"`
	BaudRate int           `mapstructure:"baud_rate"`
	DataBits int           `mapstructure:"data_bits"`
	Parity   string        `mapstructure:"parity"`
	StopBits int           `mapstructure:"stop_bits"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Flag names bound to configuration keys.
var flagKeys = map[string]string{
	"log_level":           "log.level",
	"log_file":            "log.file",
	"slave_id":            "relay.slave_id",
	"device":              "simulator.serial.device",
	"baud_rate":           "simulator.serial.baud_rate",
	"response_size":       "simulator.response_size",
	"fault_channel":       "simulator.fault.channel",
	"fault_function_code": "simulator.fault.function_code",
	"persistence_type":    "simulator.persistence.type",
	"persistence_path":    "simulator.persistence.path",
}

// LoadConfig loads configuration from defaults, an optional config file and
// the flags in fs that were set on the command line. An empty configFile
// searches the usual locations; finding nothing there is not an error.
func LoadConfig(configFile string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("relay.slave_id", 1)
	v.SetDefault("simulator.serial.baud_rate", 9600)
	v.SetDefault("simulator.serial.data_bits", 8)
	v.SetDefault("simulator.serial.parity", "N")
	v.SetDefault("simulator.serial.stop_bits", 1)
	v.SetDefault("simulator.serial.timeout", 100*time.Millisecond)
	v.SetDefault("simulator.slave_id", 1)
	v.SetDefault("simulator.response_size", 8)
	v.SetDefault("simulator.fault.function_code", 5)
	v.SetDefault("simulator.persistence.type", "memory")

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/modbus-relay/")
		v.AddConfigPath("$HOME/.modbus-relay")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		// Without an explicit file everything can come from flags and defaults.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	fixupSerial(&config.Simulator.Serial)
	if config.Relay.SlaveID < 0 || config.Relay.SlaveID > 247 {
		return nil, fmt.Errorf("relay slave id %d out of range 0-247", config.Relay.SlaveID)
	}
	if config.Simulator.SlaveID < 0 || config.Simulator.SlaveID > 247 {
		return nil, fmt.Errorf("simulator slave id %d out of range 0-247", config.Simulator.SlaveID)
	}

	return &config, nil
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.Timeout == 0 {
		s.Timeout = 100 * time.Millisecond
	}
}
