/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"jinr.ru/greenlab/go-adb/pkg/log"
)

type CaptureConfig struct {
	// Port selects TCP segments to or from this port, 0 means all TCP traffic
	Port uint16 `yaml:"port"`
}

type ProxyConfig struct {
	Address         string `yaml:"address,omitempty"`
	Port            uint16 `yaml:"port,omitempty"`
	UpstreamAddress string `yaml:"upstream_address,omitempty"`
	UpstreamPort    uint16 `yaml:"upstream_port,omitempty"`
}

type ApiConfig struct {
	Address string `yaml:"address,omitempty"`
	Port    uint16 `yaml:"port,omitempty"`
}

type AMQPConfig struct {
	// URL of the broker, records are not published if it is empty
	URL      string `yaml:"url,omitempty"`
	Exchange string `yaml:"exchange,omitempty"`
}

type Config struct {
	LogLevel   string `yaml:"log_level,omitempty"`
	DBPath     string `yaml:"db_path,omitempty"`
	MaxPayload uint32 `yaml:"max_payload,omitempty"`

	*CaptureConfig `yaml:"capture,omitempty"`
	*ProxyConfig   `yaml:"proxy,omitempty"`
	*ApiConfig     `yaml:"api,omitempty"`
	*AMQPConfig    `yaml:"amqp,omitempty"`
	filepath       string
}

func (c *Config) Path() string {
	return c.filepath
}

func (c *Config) SetPath(path string) {
	c.filepath = path
}

func (c *Config) Persist(overwrite bool) error {
	if _, err := os.Stat(c.filepath); err == nil && !overwrite {
		return ErrConfigFileExists{Path: c.filepath}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.filepath)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	return os.WriteFile(c.filepath, data, 0644)
}

func (c *Config) LoadConfig() error {
	data, err := os.ReadFile(c.filepath)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return err
	}
	return c.Validate()
}

// Load reads the config file if it exists and keeps the defaults otherwise
func (c *Config) Load() {
	if _, err := os.Stat(c.filepath); err != nil {
		return
	}
	if err := c.LoadConfig(); err != nil {
		log.Warning("Error while loading config %s: %s", c.filepath, err)
	}
}

func (c *Config) Validate() error {
	if c.LogLevel != "" && !log.ValidLevel(c.LogLevel) {
		return ErrInvalidConfig{What: fmt.Sprintf("log_level %q. %s", c.LogLevel, log.HelpLevels)}
	}
	if c.ProxyConfig != nil && c.ProxyConfig.Address == c.ProxyConfig.UpstreamAddress &&
		c.ProxyConfig.Port == c.ProxyConfig.UpstreamPort {
		return ErrInvalidConfig{What: "proxy listens on its own upstream"}
	}
	return nil
}

func (c *Config) ProxyAddr() string {
	return fmt.Sprintf("%s:%d", c.ProxyConfig.Address, c.ProxyConfig.Port)
}

func (c *Config) UpstreamAddr() string {
	return fmt.Sprintf("%s:%d", c.ProxyConfig.UpstreamAddress, c.ProxyConfig.UpstreamPort)
}

func (c *Config) ApiAddr() string {
	return fmt.Sprintf("%s:%d", c.ApiConfig.Address, c.ApiConfig.Port)
}

func DefaultConfigPath() string {
	return filepath.Join(homeDir(), ConfigDir, ConfigFile)
}

func DefaultDBPath() string {
	return filepath.Join(homeDir(), ConfigDir, DBFile)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return home
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel:   DefaultLogLevel,
		DBPath:     DefaultDBPath(),
		MaxPayload: DefaultMaxPayload,
		CaptureConfig: &CaptureConfig{
			Port: DefaultCapturePort,
		},
		ProxyConfig: &ProxyConfig{
			Address:         DefaultProxyAddress,
			Port:            DefaultProxyPort,
			UpstreamAddress: DefaultProxyUpstreamAddress,
			UpstreamPort:    DefaultProxyUpstreamPort,
		},
		ApiConfig: &ApiConfig{
			Address: DefaultApiAddress,
			Port:    DefaultApiPort,
		},
		AMQPConfig: &AMQPConfig{
			Exchange: DefaultAMQPExchange,
		},
		filepath: DefaultConfigPath(),
	}
}
