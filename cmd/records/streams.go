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
)

func newStreamsCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	return &cobra.Command{
		Use:   "streams",
		Short: "List streams having records",
		RunE: func(cmd *cobra.Command, args []string) error {
			streams, err := command.NewApiClient(cfg).ListStreams()
			if err != nil {
				return err
			}
			for _, stream := range streams {
				fmt.Fprintln(cmd.OutOrStdout(), stream)
			}
			return nil
		},
	}
}
