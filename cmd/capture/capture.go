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

package capture

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-adb/pkg/command"
	"jinr.ru/greenlab/go-adb/pkg/config"
)

const (
	PortOptionName       = "port"
	MaxPayloadOptionName = "max-payload"
	DBOptionName         = "db"
	NoStoreOptionName    = "no-store"
	PrintOptionName      = "print"
)

func NewCommand() *cobra.Command {
	var port uint16
	var maxPayload uint32
	var dbPath string
	var noStore, print bool
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "capture FILE...",
		Short: "Dissect ADB traffic from pcap or pcapng files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed(PortOptionName) {
				cfg.CaptureConfig.Port = port
			}
			if maxPayload != 0 {
				cfg.MaxPayload = maxPayload
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			opts := command.SinkOptions{Store: !noStore}
			if print {
				opts.Print = cmd.OutOrStdout()
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return command.StartCaptureServer(ctx, cfg, opts, args)
		},
	}
	cmd.Flags().Uint16Var(&port, PortOptionName, 0, fmt.Sprintf("TCP port of ADB traffic, 0 for any. Default %d", config.DefaultCapturePort))
	cmd.Flags().Uint32Var(&maxPayload, MaxPayloadOptionName, 0, fmt.Sprintf("Largest accepted payload in bytes. Default %d", config.DefaultMaxPayload))
	cmd.Flags().StringVar(&dbPath, DBOptionName, "", "Record database path")
	cmd.Flags().BoolVar(&noStore, NoStoreOptionName, false, "Do not store records in the database")
	cmd.Flags().BoolVar(&print, PrintOptionName, false, "Print records as YAML")

	return cmd
}
