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
	"github.com/google/gopacket"
	"github.com/google/gopacket/tcpassembly"

	"jinr.ru/greenlab/go-adb/pkg/log"
	"jinr.ru/greenlab/go-adb/pkg/sink"
	"jinr.ru/greenlab/go-adb/pkg/srv"
)

// streamFactory creates one adbStream per TCP flow direction.
// The assembler calls it from the goroutine feeding packets, no locking is needed.
type streamFactory struct {
	maxPayload uint32
	sink       sink.Sink
	streams    []*adbStream
}

var _ tcpassembly.StreamFactory = &streamFactory{}

func (f *streamFactory) New(netFlow, tcpFlow gopacket.Flow) tcpassembly.Stream {
	st := &adbStream{
		Dissector: srv.NewDissector(srv.FlowStreamName(netFlow, tcpFlow), f.maxPayload, f.sink),
	}
	f.streams = append(f.streams, st)
	return st
}

// adbStream feeds reassembled data into a dissector
type adbStream struct {
	*srv.Dissector
}

func (st *adbStream) Reassembled(reassemblies []tcpassembly.Reassembly) {
	for _, r := range reassemblies {
		if r.Skip != 0 {
			// Skip < 0 on the very first data means the connection was already running
			// when the capture started. We take it as a message boundary.
			if r.Skip < 0 && !st.Started() {
				log.Debug("Stream %s starts without SYN", st.Stream)
			} else {
				log.Debug("Stream %s lost %d bytes", st.Stream, r.Skip)
				st.Desync(srv.DesyncGap)
			}
		}
		if len(r.Bytes) == 0 {
			continue
		}
		if err := st.Feed(r.Bytes, r.Seen); err != nil {
			log.Debug("Stream %s: %s", st.Stream, err)
		}
	}
}

func (st *adbStream) ReassemblyComplete() {
	log.Debug("Stream %s complete: %d messages", st.Stream, st.Count())
	st.Close()
}
