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
	"net"

	"github.com/charles-d-burton/rltester/mockenv"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	scriptFile string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a scripted environment server",
	Long: `Serve a canned environment over the same protocol so the tester can be
tried without a real simulator. Replies come from a YAML script:

  obs_size: 4
  done_after: 25
  events:
    - {}
    - crystals_collected: 1`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listenAndServe(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", ":9999", "address to listen on")
	serveCmd.Flags().StringVarP(&scriptFile, "script", "s", "", "YAML script describing the environment")
}

func listenAndServe(ctx context.Context, out io.Writer) error {
	script := mockenv.DefaultScript()
	if scriptFile != "" {
		var err error
		script, err = mockenv.LoadScript(scriptFile)
		if err != nil {
			return err
		}
	}
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Listening on %s\n", listener.Addr())
	return mockenv.NewServer(script).Serve(ctx, listener)
}
