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
	"fmt"
	"io"

	"github.com/charles-d-burton/rltester/datums"
	"github.com/charles-d-burton/rltester/envclient"
	"github.com/spf13/cobra"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <json>",
	Short: "Send one raw command and print the reply",
	Long: `Sends a single command, for example '{"cmd":"step","action":3}', to the
environment server and prints the reply.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doSend(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

func doSend(ctx context.Context, out io.Writer, raw string) error {
	command, err := datums.DecodeCommand([]byte(raw))
	if err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}
	if command.Cmd == "" {
		return fmt.Errorf(`invalid command: missing "cmd"`)
	}

	cfg, closeTunnel, err := suiteConfig()
	if err != nil {
		return err
	}
	defer closeTunnel()

	report := envclient.NewReporter(out)
	client, err := envclient.Dial(ctx, cfg.Addr(), envclient.Options{
		Dialer:   cfg.Dialer,
		Retries:  cfg.Retries,
		Timeout:  cfg.Timeout,
		Reporter: report,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Send(ctx, command)
	if err != nil {
		return err
	}
	if !resp.HasObs && command.Cmd != datums.CmdClose {
		report.Fail("%v", envclient.ErrMissingObs)
	}
	return nil
}
