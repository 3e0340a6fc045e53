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
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jinr.ru/greenlab/go-adb/pkg/config"
	adb "jinr.ru/greenlab/go-adb/pkg/layers"
	"jinr.ru/greenlab/go-adb/pkg/sink"
)

const (
	clientStream = "10.0.0.1:40000->10.0.0.2:5555"
	serverStream = "10.0.0.2:5555->10.0.0.1:40000"
)

type segment struct {
	fromClient bool
	seq        uint32
	syn        bool
	ack        bool
	payload    []byte
}

func adbMessage(t *testing.T, command adb.ADBCommand, arg0, arg1 uint32, payload string) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true},
		&adb.ADBLayer{ADBHeader: adb.ADBHeader{Command: command, Arg0: arg0, Arg1: arg1}}, gopacket.Payload(payload))
	require.NoError(t, err)
	return buf.Bytes()
}

func frame(t *testing.T, s segment) []byte {
	t.Helper()
	client, server := net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 0, 2)
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: client, DstIP: server}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 5555, Seq: s.seq, SYN: s.syn, ACK: s.ack, Window: 65535}
	if !s.fromClient {
		eth.SrcMAC, eth.DstMAC = eth.DstMAC, eth.SrcMAC
		ip.SrcIP, ip.DstIP = server, client
		tcp.SrcPort, tcp.DstPort = 5555, 40000
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true},
		eth, ip, tcp, gopacket.Payload(s.payload))
	require.NoError(t, err)
	return buf.Bytes()
}

func writePcap(t *testing.T, segments []segment) []byte {
	t.Helper()
	out := &bytes.Buffer{}
	w := pcapgo.NewWriter(out)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	ts := time.Unix(1700000000, 0)
	for i, s := range segments {
		data := frame(t, s)
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(data),
			Length:        len(data),
		}
		require.NoError(t, w.WritePacket(ci, data))
	}
	return out.Bytes()
}

func newCaptureServer(t *testing.T, records sink.Sink) *CaptureServer {
	t.Helper()
	cfg := config.NewDefaultConfig()
	return NewCaptureServer(context.Background(), cfg, records)
}

func byStream(records []*sink.Record) map[string][]*sink.Record {
	result := map[string][]*sink.Record{}
	for _, rec := range records {
		result[rec.Stream] = append(result[rec.Stream], rec)
	}
	return result
}

// handshake followed by a CNXN exchange, the client CNXN is split over three segments
func handshakeSegments(t *testing.T) []segment {
	cnxn := adbMessage(t, adb.ADBCommandConnect, 0x01000001, 256*1024, "host::features=shell_v2\x00")
	reply := adbMessage(t, adb.ADBCommandConnect, 0x01000001, 256*1024, "device::ro.product.name=test\x00")
	open := adbMessage(t, adb.ADBCommandOpen, 1, 0, "shell:id\x00")
	return []segment{
		{fromClient: true, seq: 100, syn: true},
		{fromClient: false, seq: 500, syn: true, ack: true},
		{fromClient: true, seq: 101, ack: true, payload: cnxn[:10]},
		{fromClient: true, seq: 111, ack: true, payload: cnxn[10:30]},
		{fromClient: true, seq: 131, ack: true, payload: append(append([]byte{}, cnxn[30:]...), open...)},
		{fromClient: false, seq: 501, ack: true, payload: reply},
	}
}

func TestCaptureHandshake(t *testing.T) {
	records := &sink.SliceSink{}
	stats, err := newCaptureServer(t, records).Read(bytes.NewReader(writePcap(t, handshakeSegments(t))))
	require.NoError(t, err)

	assert.Equal(t, 6, stats.Packets)
	assert.Equal(t, 6, stats.TCPPackets)
	assert.Equal(t, 2, stats.Streams)
	assert.Equal(t, uint64(3), stats.Messages)
	assert.Equal(t, 0, stats.Desynced)

	streams := byStream(records.Records())
	require.Len(t, streams[clientStream], 2)
	assert.Equal(t, "CONNECT", streams[clientStream][0].Command)
	assert.Equal(t, []byte("host::features=shell_v2\x00"), streams[clientStream][0].Payload)
	assert.Equal(t, "OPEN", streams[clientStream][1].Command)
	assert.Equal(t, uint64(1), streams[clientStream][1].Seq)

	require.Len(t, streams[serverStream], 1)
	assert.Equal(t, "CONNECT", streams[serverStream][0].Command)
	assert.True(t, streams[serverStream][0].Timestamp.Equal(time.Unix(1700000000, 0).Add(5*time.Millisecond)))
}

func TestCaptureWithoutHandshake(t *testing.T) {
	write := adbMessage(t, adb.ADBCommandWrite, 1, 2, "uid=0(root)\n")
	segments := []segment{
		{fromClient: false, seq: 9000, ack: true, payload: write[:20]},
		{fromClient: false, seq: 9020, ack: true, payload: write[20:]},
	}
	records := &sink.SliceSink{}
	stats, err := newCaptureServer(t, records).Read(bytes.NewReader(writePcap(t, segments)))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Desynced)

	got := records.Records()
	require.Len(t, got, 1)
	assert.Equal(t, serverStream, got[0].Stream)
	assert.Equal(t, "WRITE", got[0].Command)
	assert.Equal(t, []byte("uid=0(root)\n"), got[0].Payload)
}

func TestCaptureGapDesyncs(t *testing.T) {
	first := adbMessage(t, adb.ADBCommandReady, 1, 2, "")
	second := adbMessage(t, adb.ADBCommandWrite, 1, 2, "lost")
	third := adbMessage(t, adb.ADBCommandClose, 1, 2, "")
	segments := []segment{
		{fromClient: true, seq: 100, syn: true},
		{fromClient: true, seq: 101, ack: true, payload: first},
		// second is never captured
		{fromClient: true, seq: 101 + uint32(len(first)+len(second)), ack: true, payload: third},
	}
	records := &sink.SliceSink{}
	stats, err := newCaptureServer(t, records).Read(bytes.NewReader(writePcap(t, segments)))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Desynced)
	got := records.Records()
	require.Len(t, got, 1)
	assert.Equal(t, "READY", got[0].Command)
}

func TestCapturePayloadTooLarge(t *testing.T) {
	big := adbMessage(t, adb.ADBCommandWrite, 1, 2, "0123456789")
	segments := []segment{
		{fromClient: true, seq: 100, syn: true},
		{fromClient: true, seq: 101, ack: true, payload: big},
	}
	cfg := config.NewDefaultConfig()
	cfg.MaxPayload = 8
	records := &sink.SliceSink{}
	stats, err := NewCaptureServer(context.Background(), cfg, records).Read(bytes.NewReader(writePcap(t, segments)))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Desynced)
	assert.Empty(t, records.Records())
}

func TestCapturePortFilter(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.CaptureConfig.Port = 5037
	records := &sink.SliceSink{}
	stats, err := NewCaptureServer(context.Background(), cfg, records).Read(bytes.NewReader(writePcap(t, handshakeSegments(t))))
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Packets)
	assert.Equal(t, 0, stats.TCPPackets)
	assert.Empty(t, records.Records())
}

func TestCapturePcapNg(t *testing.T) {
	out := &bytes.Buffer{}
	w, err := pcapgo.NewNgWriter(out, layers.LinkTypeEthernet)
	require.NoError(t, err)
	for i, s := range handshakeSegments(t) {
		data := frame(t, s)
		require.NoError(t, w.WritePacket(gopacket.CaptureInfo{
			Timestamp:      time.Unix(1700000000, int64(i)),
			CaptureLength:  len(data),
			Length:         len(data),
			InterfaceIndex: 0,
		}, data))
	}
	require.NoError(t, w.Flush())

	records := &sink.SliceSink{}
	stats, err := newCaptureServer(t, records).Read(out)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.Messages)
	assert.Len(t, records.Records(), 3)
}

func TestCaptureTruncatedFile(t *testing.T) {
	data := writePcap(t, handshakeSegments(t))
	records := &sink.SliceSink{}
	stats, err := newCaptureServer(t, records).Read(bytes.NewReader(data[:len(data)-10]))
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Packets)
	// the client stream is complete, the server reply was cut off
	assert.Len(t, byStream(records.Records())[clientStream], 2)
	assert.Empty(t, byStream(records.Records())[serverStream])
}
