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
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/google/gopacket"
	gopacketlayers "github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/google/gopacket/tcpassembly"

	"jinr.ru/greenlab/go-adb/pkg/config"
	"jinr.ru/greenlab/go-adb/pkg/log"
	"jinr.ru/greenlab/go-adb/pkg/sink"
	"jinr.ru/greenlab/go-adb/pkg/srv"
)

const (
	// pcapng files start with a section header block
	PcapNgMagic = 0x0a0d0d0a
	// MaxBufferedPagesPerConnection bounds memory used for out of order segments
	MaxBufferedPagesPerConnection = 4096
)

// Stats summarizes one capture run
type Stats struct {
	Packets    int
	TCPPackets int
	Streams    int
	Messages   uint64
	Desynced   int
}

type packetReader interface {
	gopacket.PacketDataSource
	LinkType() gopacketlayers.LinkType
}

// CaptureServer reads ADB traffic from capture files.
// TCP reassembly is done by gopacket tcpassembly, every stream direction
// gets its own dissector which is driven by reassembled data.
type CaptureServer struct {
	srv.Server
	port    gopacketlayers.TCPPort
	factory *streamFactory
}

func NewCaptureServer(ctx context.Context, cfg *config.Config, s sink.Sink) *CaptureServer {
	var port uint16
	if cfg.CaptureConfig != nil {
		port = cfg.CaptureConfig.Port
	}
	log.Info("Initializing capture server: port: %d max payload: %d", port, cfg.MaxPayload)
	return &CaptureServer{
		Server: srv.Server{
			Context: ctx,
			Config:  cfg,
			Sink:    s,
		},
		port: gopacketlayers.TCPPort(port),
	}
}

// ReadFile dissects a pcap or pcapng file
func (s *CaptureServer) ReadFile(path string) (*Stats, error) {
	log.Info("Reading capture file: %s", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s.Read(f)
}

// Read dissects capture data in pcap or pcapng format
func (s *CaptureServer) Read(r io.Reader) (*Stats, error) {
	reader, err := newPacketReader(r)
	if err != nil {
		return nil, err
	}
	return s.Run(reader, reader.LinkType())
}

func newPacketReader(r io.Reader) (packetReader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(magic) == PcapNgMagic {
		log.Debug("Capture format: pcapng")
		return pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	}
	log.Debug("Capture format: pcap")
	return pcapgo.NewReader(br)
}

// Run reads packets until the source is exhausted or the context is done.
// All streams are flushed at the end, incomplete trailing messages are dropped.
func (s *CaptureServer) Run(source gopacket.PacketDataSource, linkType gopacket.Decoder) (*Stats, error) {
	s.factory = &streamFactory{
		maxPayload: s.Config.MaxPayload,
		sink:       s.Sink,
	}
	assembler := tcpassembly.NewAssembler(tcpassembly.NewStreamPool(s.factory))
	assembler.MaxBufferedPagesPerConnection = MaxBufferedPagesPerConnection

	stats := &Stats{}
	packets := gopacket.NewPacketSource(source, linkType)
	packets.DecodeOptions = gopacket.DecodeOptions{Lazy: true}

	var runErr error
	for {
		if err := s.Context.Err(); err != nil {
			runErr = err
			break
		}
		packet, err := packets.NextPacket()
		if err == io.EOF {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			log.Warning("Capture is truncated after %d packets", stats.Packets)
			break
		}
		if err != nil {
			runErr = err
			break
		}
		stats.Packets++

		network := packet.NetworkLayer()
		tcpLayer := packet.Layer(gopacketlayers.LayerTypeTCP)
		if network == nil || tcpLayer == nil {
			continue
		}
		tcp, ok := tcpLayer.(*gopacketlayers.TCP)
		if !ok {
			log.Error("Error while asserting to TCP layer")
			continue
		}
		if s.port != 0 && tcp.SrcPort != s.port && tcp.DstPort != s.port {
			continue
		}
		stats.TCPPackets++
		assembler.AssembleWithTimestamp(network.NetworkFlow(), tcp, packet.Metadata().Timestamp)
	}

	closed := assembler.FlushAll()
	log.Debug("Flushed %d connections", closed)

	for _, st := range s.factory.streams {
		stats.Streams++
		stats.Messages += st.Count()
		if st.Desynced() {
			stats.Desynced++
		}
	}
	log.Info("Capture done: packets: %d tcp: %d streams: %d messages: %d desynced: %d",
		stats.Packets, stats.TCPPackets, stats.Streams, stats.Messages, stats.Desynced)
	return stats, runErr
}
