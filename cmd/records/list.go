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

package records

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-adb/pkg/command"
	"jinr.ru/greenlab/go-adb/pkg/config"
	"jinr.ru/greenlab/go-adb/pkg/layers"
)

func newListCommand() *cobra.Command {
	var stream, commandName string
	var summary bool
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records of a stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			if commandName != "" {
				if _, err := layers.ParseADBCommand(commandName); err != nil {
					return err
				}
			}
			records, err := command.NewApiClient(cfg).ListRecords(stream, commandName)
			if err != nil {
				return err
			}
			for _, rec := range records {
				if summary {
					fmt.Fprintln(cmd.OutOrStdout(), rec.Summary())
					continue
				}
				fmt.Fprint(cmd.OutOrStdout(), rec)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&stream, StreamOptionName, "", "Stream name, e.g. 10.0.0.1:40000->10.0.0.2:5555")
	cmd.Flags().StringVar(&commandName, CommandOptionName, "", "Only records with this command, e.g. CNXN or WRITE")
	cmd.Flags().BoolVar(&summary, "summary", false, "One line per record")
	cmd.MarkFlagRequired(StreamOptionName)
	return cmd
}
