// Copyright © 2019 NAME HERE <EMAIL ADDRESS>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"net"

	"github.com/charles-d-burton/rltester/envclient"
	"github.com/charles-d-burton/rltester/keys"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// suiteConfig resolves flags, environment and config file into a run
// configuration. The returned func releases the ssh tunnel, if any.
func suiteConfig() (envclient.Config, func() error, error) {
	cfg := envclient.DefaultConfig()
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.Seed = viper.GetInt("seed")
	cfg.Steps = viper.GetInt("steps")
	cfg.Pause = viper.GetDuration("pause")
	cfg.Timeout = viper.GetDuration("timeout")
	cfg.RandSeed = viper.GetInt64("rand-seed")

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return cfg, nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.Steps < 0 {
		return cfg, nil, fmt.Errorf("steps must not be negative, got %d", cfg.Steps)
	}
	retries := viper.GetInt("dial-retries")
	if retries < 0 {
		return cfg, nil, fmt.Errorf("dial-retries must not be negative, got %d", retries)
	}
	cfg.Retries = uint64(retries)

	dialer, closeTunnel, err := tunnelDialer()
	if err != nil {
		return cfg, nil, err
	}
	cfg.Dialer = dialer
	return cfg, closeTunnel, nil
}

func tunnelDialer() (envclient.Dialer, func() error, error) {
	noop := func() error { return nil }
	bastion := viper.GetString("ssh-host")
	if bastion == "" {
		return nil, noop, nil
	}
	if _, _, err := net.SplitHostPort(bastion); err != nil {
		bastion = net.JoinHostPort(bastion, "22")
	}

	keyFile, err := homedir.Expand(viper.GetString("ssh-key"))
	if err != nil {
		return nil, nil, err
	}
	knownHosts, err := homedir.Expand(viper.GetString("known-hosts"))
	if err != nil {
		return nil, nil, err
	}
	sshConfig, err := keys.ClientConfig(viper.GetString("ssh-user"), keyFile, knownHosts)
	if err != nil {
		return nil, nil, fmt.Errorf("ssh tunnel: %w", err)
	}
	dialer := envclient.NewSSHDialer(bastion, sshConfig)
	return dialer, dialer.Close, nil
}
