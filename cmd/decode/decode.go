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

package decode

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-adb/pkg/config"
	"jinr.ru/greenlab/go-adb/pkg/sink"
	"jinr.ru/greenlab/go-adb/pkg/srv"
)

const (
	StreamOptionName     = "stream"
	MaxPayloadOptionName = "max-payload"
)

const decodeExample = `
Decode a SYNC message
# go-adb decode 53594e43 00000000 01000000 00000000 00000000 aca6b0bc
`

// ParseHex joins the arguments and decodes them as hex, whitespace is ignored
func ParseHex(args []string) ([]byte, error) {
	joined := strings.Join(strings.Fields(strings.Join(args, " ")), "")
	return hex.DecodeString(joined)
}

func NewCommand() *cobra.Command {
	var stream string
	var maxPayload uint32
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:     "decode HEX...",
		Short:   "Decode ADB messages given as hex bytes",
		Example: decodeExample,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := ParseHex(args)
			if err != nil {
				return err
			}
			if maxPayload != 0 {
				cfg.MaxPayload = maxPayload
			}
			d := srv.NewDissector(stream, cfg.MaxPayload, sink.NewYAMLSink(cmd.OutOrStdout()))
			if err := d.Feed(data, time.Now()); err != nil {
				return err
			}
			return d.Pending()
		},
	}
	cmd.Flags().StringVar(&stream, StreamOptionName, "hex", "Stream name put into records")
	cmd.Flags().Uint32Var(&maxPayload, MaxPayloadOptionName, 0, "Largest accepted payload in bytes")

	return cmd
}
