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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charles-d-burton/rltester/envclient"
	"github.com/charles-d-burton/rltester/logger"
	"github.com/fatih/color"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// errSuiteFailed means the failure was already printed in the report.
var errSuiteFailed = errors.New("smoke suite failed")

// rootCmd runs the smoke suite when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "rltester",
	Short: "Smoke test an RL environment server",
	Long: `Connects to a reinforcement-learning environment server speaking
newline-delimited JSON over TCP, checks that "reset" returns an observation
and that a short random rollout of "step" commands gets valid replies.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSuite(cmd.Context(), cmd.OutOrStdout())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errSuiteFailed) {
			color.Red("%v", err)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rltester.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "diagnostic log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringP("host", "H", "localhost", "environment server host")
	rootCmd.PersistentFlags().IntP("port", "p", 9999, "environment server port")
	rootCmd.PersistentFlags().Duration("timeout", 0, "per exchange timeout, 0 waits forever")
	rootCmd.PersistentFlags().Int("dial-retries", 0, "extra connect attempts with exponential backoff")
	rootCmd.PersistentFlags().String("ssh-host", "", "reach the server through this ssh bastion (host[:port])")
	rootCmd.PersistentFlags().String("ssh-user", "", "ssh bastion user (default $USER)")
	rootCmd.PersistentFlags().String("ssh-key", "~/.ssh/id_rsa", "private key for the ssh bastion")
	rootCmd.PersistentFlags().String("known-hosts", "", "known_hosts file used to verify the bastion")

	rootCmd.Flags().Int("seed", 42, "seed sent with the reset command")
	rootCmd.Flags().Int("steps", 10, "number of random steps to send")
	rootCmd.Flags().Duration("pause", envclient.DefaultConfig().Pause, "pause between the reset and step tests")
	rootCmd.Flags().Int64("rand-seed", 0, "seed for action selection, 0 picks one from the clock")

	viper.BindPFlags(rootCmd.PersistentFlags())
	viper.BindPFlags(rootCmd.Flags())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".rltester")
	}

	viper.SetEnvPrefix("RLTEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	logger.Init(viper.GetString("log-level"))
	if err == nil {
		log.Debug().Str("file", viper.ConfigFileUsed()).Msg("using config file")
	} else if cfgFile != "" {
		log.Warn().Err(err).Msg("could not read config file")
	}
}

func runSuite(ctx context.Context, out io.Writer) error {
	cfg, closeTunnel, err := suiteConfig()
	if err != nil {
		return err
	}
	defer closeTunnel()

	res, err := envclient.Run(ctx, cfg, out)
	if err != nil {
		return fmt.Errorf("%w: %v", errSuiteFailed, err)
	}
	if !res.OK() {
		return errSuiteFailed
	}
	return nil
}
