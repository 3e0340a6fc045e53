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

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-adb/cmd/capture"
	"jinr.ru/greenlab/go-adb/cmd/completion"
	"jinr.ru/greenlab/go-adb/cmd/config"
	"jinr.ru/greenlab/go-adb/cmd/decode"
	"jinr.ru/greenlab/go-adb/cmd/proxy"
	"jinr.ru/greenlab/go-adb/cmd/records"
	"jinr.ru/greenlab/go-adb/cmd/serve"
	pkgconfig "jinr.ru/greenlab/go-adb/pkg/config"
	"jinr.ru/greenlab/go-adb/pkg/log"
)

const (
	LogLevelOptionName = "log-level"
)

func NewRootCommand(out io.Writer) *cobra.Command {
	var logLevel string
	cfg := pkgconfig.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:          "go-adb",
		Short:        "Tool to dissect Android Debug Bridge traffic",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if err := log.SetLevel(cfg.LogLevel); err != nil {
				return err
			}
			log.Init(cmd.ErrOrStderr(), cfg.LogLevel)
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.AddCommand(capture.NewCommand())
	cmd.AddCommand(proxy.NewCommand())
	cmd.AddCommand(serve.NewCommand())
	cmd.AddCommand(records.NewCommand())
	cmd.AddCommand(decode.NewCommand())
	cmd.AddCommand(config.NewCommand())
	cmd.AddCommand(completion.NewCommand())
	cmd.PersistentFlags().StringVar(&logLevel, LogLevelOptionName, "", fmt.Sprintf("Log level. %s", log.HelpLevels))
	return cmd
}
