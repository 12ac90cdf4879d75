/*
 * Copyright 2023 ICON Foundation
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package node

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/icon-project/minthub/chain/polygon"
	"github.com/icon-project/minthub/chain/solana"
	"github.com/icon-project/minthub/common/errors"
	"github.com/icon-project/minthub/common/log"
	"github.com/icon-project/minthub/service"
)

const (
	DefaultRPCAddr = ":9080"
	DefaultDBType  = "goleveldb"
	DefaultBaseDir = ".minthub"
)

// CreditsConfig selects the gate implementation. An endpoint points at
// the credits ledger service; without one the node runs a memory gate
// seeded with Balance, which only makes sense for development.
type CreditsConfig struct {
	Endpoint string        `json:"endpoint,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
	Balance  int64         `json:"balance,omitempty"`
}

type Config struct {
	RPCAddr string `json:"rpc_addr"`
	BaseDir string `json:"node_dir"`
	DBType  string `json:"db_type"`

	Solana  *solana.Config  `json:"solana,omitempty"`
	Polygon *polygon.Config `json:"polygon,omitempty"`

	Credits CreditsConfig  `json:"credits"`
	Service service.Config `json:"service"`

	LogLevel     string               `json:"log_level"`
	ConsoleLevel string               `json:"console_level"`
	LogWriter    *log.WriterConfig    `json:"log_writer,omitempty"`
	LogForwarder *log.ForwarderConfig `json:"log_forwarder,omitempty"`

	FilePath string `json:"-"` // absolute path of the loaded file

	// build info
	BuildVersion string `json:"-"`
	BuildTags    string `json:"-"`
}

func (c *Config) FillEmpty() {
	if c.RPCAddr == "" {
		c.RPCAddr = DefaultRPCAddr
	}
	if c.DBType == "" {
		c.DBType = DefaultDBType
	}
	if c.BaseDir == "" {
		c.BaseDir = DefaultBaseDir
	}
	if c.LogLevel == "" {
		c.LogLevel = "debug"
	}
	if c.ConsoleLevel == "" {
		c.ConsoleLevel = "trace"
	}
}

func (c *Config) DBDir() string {
	return c.ResolveAbsolute(path.Join(c.BaseDir, "db"))
}

func (c *Config) ResolveAbsolute(targetPath string) string {
	return ResolveAbsolute(c.FilePath, targetPath)
}

func ResolveAbsolute(baseFile, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	if baseFile == "" {
		r, _ := filepath.Abs(targetPath)
		return r
	}
	if !filepath.IsAbs(baseFile) {
		baseFile, _ = filepath.Abs(baseFile)
	}
	return filepath.Clean(path.Join(filepath.Dir(baseFile), targetPath))
}

func (c *Config) Load(name string) error {
	bs, err := os.ReadFile(name)
	if err != nil {
		return errors.Wrapf(err, "fail to open config file=%s", name)
	}
	if err := json.Unmarshal(bs, c); err != nil {
		return errors.Wrapf(err, "fail to parse config file=%s", name)
	}
	c.FilePath, _ = filepath.Abs(name)
	return nil
}

func (c *Config) Save(name string) error {
	if dir := filepath.Dir(name); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return errors.Wrapf(err, "fail to create directory %s", dir)
		}
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "fail to open file=%s", name)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return errors.Wrapf(err, "fail to marshal config file=%s", name)
	}
	c.FilePath, _ = filepath.Abs(name)
	return nil
}

// BuildLogger applies the log section onto the global logger and
// returns it.
func (c *Config) BuildLogger() (log.Logger, error) {
	logger := log.WithFields(log.Fields{
		log.FieldKeyChain: "minthub",
	})
	if lv, err := log.ParseLevel(c.LogLevel); err != nil {
		return nil, errors.Wrapf(err, "invalid log_level=%s", c.LogLevel)
	} else {
		logger.SetLevel(lv)
	}
	if lv, err := log.ParseLevel(c.ConsoleLevel); err != nil {
		return nil, errors.Wrapf(err, "invalid console_level=%s", c.ConsoleLevel)
	} else {
		logger.SetConsoleLevel(lv)
	}
	if c.LogWriter != nil {
		writer, err := log.NewWriter(c.LogWriter)
		if err != nil {
			return nil, errors.Wrap(err, "fail to make log writer")
		}
		if err := logger.SetFileWriter(writer); err != nil {
			return nil, errors.Wrap(err, "fail to set log writer")
		}
	}
	if c.LogForwarder != nil {
		if err := log.AddForwarder(c.LogForwarder); err != nil {
			return nil, errors.Wrap(err, "fail to add log forwarder")
		}
	}
	return logger, nil
}
