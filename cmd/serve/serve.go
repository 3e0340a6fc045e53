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

package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-adb/pkg/command"
	"jinr.ru/greenlab/go-adb/pkg/config"
)

const (
	AddressOptionName = "address"
	PortOptionName    = "port"
	DBOptionName      = "db"
)

func NewCommand() *cobra.Command {
	var address, dbPath string
	var port uint16
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start API server over the record database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if address != "" {
				cfg.ApiConfig.Address = address
			}
			if port != 0 {
				cfg.ApiConfig.Port = port
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return command.StartApiServer(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&address, AddressOptionName, "", fmt.Sprintf("Address to bind. E.g. %s", config.DefaultApiAddress))
	cmd.Flags().Uint16Var(&port, PortOptionName, 0, fmt.Sprintf("Port number to bind. E.g. %d", config.DefaultApiPort))
	cmd.Flags().StringVar(&dbPath, DBOptionName, "", "Record database path")

	return cmd
}
