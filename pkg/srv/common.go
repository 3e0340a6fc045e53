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

package srv

import (
	"context"
	"net"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-adb/pkg/config"
	"jinr.ru/greenlab/go-adb/pkg/sink"
)

// Server is embedded by every host which feeds ADB streams into a sink
type Server struct {
	context.Context
	*config.Config
	Sink sink.Sink
}

// StreamName names one direction of a TCP connection, e.g. 10.0.0.1:40000->10.0.0.2:5555
func StreamName(srcHost, srcPort, dstHost, dstPort string) string {
	return net.JoinHostPort(srcHost, srcPort) + "->" + net.JoinHostPort(dstHost, dstPort)
}

// FlowStreamName names the stream of a reassembled TCP flow
func FlowStreamName(netFlow, tcpFlow gopacket.Flow) string {
	return StreamName(netFlow.Src().String(), tcpFlow.Src().String(),
		netFlow.Dst().String(), tcpFlow.Dst().String())
}

// AddrStreamName names the stream carrying bytes from src to dst
func AddrStreamName(src, dst net.Addr) string {
	return src.String() + "->" + dst.String()
}
