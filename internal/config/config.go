// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ffutop/modbus-emulator/internal/bus"
	"github.com/ffutop/modbus-emulator/internal/emulator"
	"github.com/ffutop/modbus-emulator/internal/emulator/model"
	"github.com/ffutop/modbus-emulator/modbus"
	"github.com/ffutop/modbus-emulator/modbus/codec"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config defines the global configuration structure
type Config struct {
	Log       LogConfig        `mapstructure:"log"`
	Devices   []DeviceConfig   `mapstructure:"devices"`
	Upstreams []UpstreamConfig `mapstructure:"upstreams"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// DeviceConfig describes one or more identical emulated slaves.
type DeviceConfig struct {
	Name           string               `mapstructure:"name"`
	UnitIDs        string               `mapstructure:"unit_ids"` // "1", "1,2", "1-10"
	Registers      []RegisterConfig     `mapstructure:"registers"`
	Exceptions     []ExceptionConfig    `mapstructure:"exceptions"`
	Mutations      []MutationConfig     `mapstructure:"mutations"`
	Identification IdentificationConfig `mapstructure:"identification"`
	Comment        string               `mapstructure:"comment"`
	Files          []FileConfig         `mapstructure:"files"`
}

// RegisterConfig loads consecutive values starting at Address.
type RegisterConfig struct {
	Kind    string `mapstructure:"kind"` // coil, discrete, holding, input
	Address int    `mapstructure:"address"`
	Values  []int  `mapstructure:"values"`
}

// ExceptionConfig injects an exception response.
type ExceptionConfig struct {
	Function int `mapstructure:"function"`
	Address  int `mapstructure:"address"`
	Code     int `mapstructure:"code"`
}

// MutationConfig periodically randomizes a register.
type MutationConfig struct {
	Kind     string        `mapstructure:"kind"`
	Address  int           `mapstructure:"address"`
	Interval time.Duration `mapstructure:"interval"`
	Min      int           `mapstructure:"min"`
	Max      int           `mapstructure:"max"`
}

// IdentificationConfig holds the Read Device Identification objects.
type IdentificationConfig struct {
	VendorName          string `mapstructure:"vendor_name"`
	ProductCode         string `mapstructure:"product_code"`
	Revision            string `mapstructure:"revision"`
	VendorURL           string `mapstructure:"vendor_url"`
	ProductName         string `mapstructure:"product_name"`
	ModelName           string `mapstructure:"model_name"`
	UserApplicationName string `mapstructure:"user_application_name"`
}

// FileConfig is a virtual file reported by the file function codes.
type FileConfig struct {
	Name string `mapstructure:"name"`
	Size int64  `mapstructure:"size"`
}

// UpstreamConfig defines a master connecting to the emulator
type UpstreamConfig struct {
	Type   string       `mapstructure:"type"`   // "tcp", "rtu", "rtu-over-tcp"
	Tcp    TcpConfig    `mapstructure:"tcp"`    // Used if Type is "tcp" or "rtu-over-tcp"
	Serial SerialConfig `mapstructure:"serial"` // Used if Type is "rtu"
}

// TcpConfig defines TCP settings
type TcpConfig struct {
	Address string `mapstructure:"address"` // e.g. "0.0.0.0:502" or "192.168.1.100:502"
}

// SerialConfig defines RTU settings
type SerialConfig struct {
	Device    string        `mapstructure:"device"`
	BaudRate  int           `mapstructure:"baud_rate"`
	DataBits  int           `mapstructure:"data_bits"`
	Parity    string        `mapstructure:"parity"`
	StopBits  int           `mapstructure:"stop_bits"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RqstPause time.Duration `mapstructure:"rqst_pause"` // Pause between requests

	// RS485 specific
	RS485              bool          `mapstructure:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

// LoadConfig loads configuration from file. Flags, when given, override
// file values: "config" selects the file and "log_level" sets log.level.
func LoadConfig(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			configFile = f.Value.String()
		}
		if f := flags.Lookup("log_level"); f != nil {
			if err := v.BindPFlag("log.level", f); err != nil {
				return nil, fmt.Errorf("failed to bind flag: %w", err)
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/modbus-emulator/")
		v.AddConfigPath("$HOME/.modbus-emulator")
		v.AddConfigPath(".")
	}

	// Set defaults
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate / Fixups
	for i := range config.Upstreams {
		fixupSerial(&config.Upstreams[i].Serial)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.Timeout == 0 {
		s.Timeout = 500 * time.Millisecond
	}
	if s.RqstPause == 0 {
		s.RqstPause = 100 * time.Millisecond
	}
}

// Validate checks cross-field constraints that unmarshalling cannot.
func (c *Config) Validate() error {
	if len(c.Devices) == 0 {
		return errors.New("config: no devices")
	}
	seen := make(map[byte]string)
	for i, d := range c.Devices {
		name := d.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		ids, err := d.Units()
		if err != nil {
			return fmt.Errorf("config: device %s: %w", name, err)
		}
		for _, id := range ids {
			if other, ok := seen[id]; ok {
				return fmt.Errorf("config: unit %d used by devices %s and %s", id, other, name)
			}
			seen[id] = name
		}
	}
	for i, u := range c.Upstreams {
		switch u.Type {
		case "tcp", "rtu-over-tcp":
			if u.Tcp.Address == "" {
				return fmt.Errorf("config: upstream %d: tcp.address is required", i)
			}
		case "rtu":
			if u.Serial.Device == "" {
				return fmt.Errorf("config: upstream %d: serial.device is required", i)
			}
		default:
			return fmt.Errorf("config: upstream %d: unknown type %q", i, u.Type)
		}
	}
	return nil
}

// Units parses UnitIDs.
func (d DeviceConfig) Units() ([]byte, error) {
	ids, err := bus.ParseSlaveIDs(d.UnitIDs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errors.New("unit_ids is empty")
	}
	return ids, nil
}

// Apply loads the device's registers, exceptions, profile and mutations into e.
func (d DeviceConfig) Apply(e *emulator.Emulator) error {
	defs := make([]emulator.RegisterDefinition, 0, len(d.Registers))
	for _, r := range d.Registers {
		kind, err := model.ParseRegisterKind(r.Kind)
		if err != nil {
			return err
		}
		defs = append(defs, emulator.RegisterDefinition{Kind: kind, Address: r.Address, Values: r.Values})
	}
	if err := e.AddRegisters(defs); err != nil {
		return fmt.Errorf("registers: %w", err)
	}

	for _, x := range d.Exceptions {
		if x.Function < 1 || x.Function > 0x7F || x.Address < 0 || x.Address > model.MaxAddress {
			return fmt.Errorf("exception %+v out of range", x)
		}
		if err := e.SetException(byte(x.Function), uint16(x.Address), modbus.ExceptionCode(x.Code)); err != nil {
			return err
		}
	}

	if d.Comment != "" {
		if err := e.SetComment(d.Comment); err != nil {
			return fmt.Errorf("comment: %w", err)
		}
	}
	for _, f := range d.Files {
		if err := e.AddFile(f.Name, f.Size); err != nil {
			return err
		}
	}
	for id, value := range d.Identification.objects() {
		if err := e.SetDeviceObject(id, value); err != nil {
			return err
		}
	}

	for _, m := range d.Mutations {
		kind, err := model.ParseRegisterKind(m.Kind)
		if err != nil {
			return err
		}
		if m.Address < 0 || m.Address > model.MaxAddress {
			return fmt.Errorf("mutation address %d out of range", m.Address)
		}
		spec := emulator.MutationSpec{Interval: m.Interval, Min: m.Min, Max: m.Max}
		if err := e.StartMutation(kind, uint16(m.Address), spec); err != nil {
			return err
		}
	}
	return nil
}

func (c IdentificationConfig) objects() map[byte]string {
	return map[byte]string{
		codec.ObjectVendorName:          c.VendorName,
		codec.ObjectProductCode:         c.ProductCode,
		codec.ObjectMajorMinorRevision:  c.Revision,
		codec.ObjectVendorURL:           c.VendorURL,
		codec.ObjectProductName:         c.ProductName,
		codec.ObjectModelName:           c.ModelName,
		codec.ObjectUserApplicationName: c.UserApplicationName,
	}
}
