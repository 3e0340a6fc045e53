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
	"strconv"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-adb/pkg/command"
	"jinr.ru/greenlab/go-adb/pkg/config"
)

func newGetCommand() *cobra.Command {
	var stream string
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "get SEQ",
		Short: "Show one record of a stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return err
			}
			rec, err := command.NewApiClient(cfg).GetRecord(stream, seq)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), rec)
			return nil
		},
	}
	cmd.Flags().StringVar(&stream, StreamOptionName, "", "Stream name")
	cmd.MarkFlagRequired(StreamOptionName)
	return cmd
}
