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

package proxy

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
	AddressOptionName         = "address"
	PortOptionName            = "port"
	UpstreamAddressOptionName = "upstream-address"
	UpstreamPortOptionName    = "upstream-port"
	ApiOptionName             = "api"
	PrintOptionName           = "print"
)

func NewCommand() *cobra.Command {
	var address, upstreamAddress string
	var port, upstreamPort uint16
	var withApi, print bool
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Start ADB proxy which dissects the traffic it forwards",
		RunE: func(cmd *cobra.Command, args []string) error {
			if address != "" {
				cfg.ProxyConfig.Address = address
			}
			if port != 0 {
				cfg.ProxyConfig.Port = port
			}
			if upstreamAddress != "" {
				cfg.ProxyConfig.UpstreamAddress = upstreamAddress
			}
			if upstreamPort != 0 {
				cfg.ProxyConfig.UpstreamPort = upstreamPort
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			opts := command.SinkOptions{Store: true}
			if print {
				opts.Print = cmd.OutOrStdout()
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return command.StartProxyServer(ctx, cfg, opts, withApi)
		},
	}
	cmd.Flags().StringVar(&address, AddressOptionName, "", fmt.Sprintf("Address to bind. E.g. %s", config.DefaultProxyAddress))
	cmd.Flags().Uint16Var(&port, PortOptionName, 0, fmt.Sprintf("Port number to bind. E.g. %d", config.DefaultProxyPort))
	cmd.Flags().StringVar(&upstreamAddress, UpstreamAddressOptionName, "", fmt.Sprintf("adbd address. E.g. %s", config.DefaultProxyUpstreamAddress))
	cmd.Flags().Uint16Var(&upstreamPort, UpstreamPortOptionName, 0, fmt.Sprintf("adbd port. E.g. %d", config.DefaultProxyUpstreamPort))
	cmd.Flags().BoolVar(&withApi, ApiOptionName, false, "Serve the API next to the proxy")
	cmd.Flags().BoolVar(&print, PrintOptionName, false, "Print records as YAML")

	return cmd
}
