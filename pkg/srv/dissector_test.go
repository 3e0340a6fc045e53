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
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adb "jinr.ru/greenlab/go-adb/pkg/layers"
	"jinr.ru/greenlab/go-adb/pkg/sink"
)

func message(t *testing.T, command adb.ADBCommand, arg0 uint32, payload string) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true},
		&adb.ADBLayer{ADBHeader: adb.ADBHeader{Command: command, Arg0: arg0}}, gopacket.Payload(payload))
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDissectorChunks(t *testing.T) {
	records := &sink.SliceSink{}
	d := NewDissector("a->b", 0, records)
	assert.False(t, d.Started())

	stream := append(message(t, adb.ADBCommandConnect, 0x01000001, "host::\x00"),
		message(t, adb.ADBCommandWrite, 1, "hello")...)
	ts := time.Unix(1700000000, 0)
	for i := 0; i < len(stream); i += 5 {
		end := i + 5
		if end > len(stream) {
			end = len(stream)
		}
		require.NoError(t, d.Feed(stream[i:end], ts))
		assert.True(t, d.Started())
	}
	require.NoError(t, d.Pending())

	got := records.Records()
	require.Len(t, got, 2)
	assert.Equal(t, "CONNECT", got[0].Command)
	assert.Equal(t, uint64(0), got[0].Seq)
	assert.Equal(t, "WRITE", got[1].Command)
	assert.Equal(t, uint64(1), got[1].Seq)
	assert.Equal(t, []byte("hello"), got[1].Payload)
	assert.Equal(t, "a->b", got[1].Stream)
	assert.Equal(t, uint64(2), d.Count())
}

func TestDissectorPending(t *testing.T) {
	d := NewDissector("a->b", 0, &sink.SliceSink{})
	msg := message(t, adb.ADBCommandWrite, 1, "hello")
	require.NoError(t, d.Feed(msg[:adb.ADBHeaderLen], time.Now()))
	assert.Equal(t, adb.ErrInsufficientData{Need: len(msg), Have: adb.ADBHeaderLen}, d.Pending())
	d.Close()
	assert.NoError(t, d.Pending())
}

func TestDissectorDesync(t *testing.T) {
	records := &sink.SliceSink{}
	d := NewDissector("a->b", 4, records)
	require.NoError(t, d.Feed(message(t, adb.ADBCommandReady, 1, "ok"), time.Now()))

	err := d.Feed(message(t, adb.ADBCommandWrite, 1, "hello"), time.Now())
	var tooLarge adb.ErrPayloadTooLarge
	require.True(t, errors.As(err, &tooLarge))
	assert.True(t, d.Desynced())

	// the rest of the stream is ignored
	assert.NoError(t, d.Feed(message(t, adb.ADBCommandClose, 1, ""), time.Now()))
	assert.Len(t, records.Records(), 1)
}

func TestDissectorSinkErrorKeepsFraming(t *testing.T) {
	calls := 0
	d := NewDissector("a->b", 0, sink.Func(func(*sink.Record) error {
		calls++
		return errors.New("sink is down")
	}))
	stream := append(message(t, adb.ADBCommandOpen, 1, "sync:\x00"), message(t, adb.ADBCommandClose, 1, "")...)
	require.NoError(t, d.Feed(stream, time.Now()))
	assert.Equal(t, 2, calls)
	assert.False(t, d.Desynced())
}

func TestDissectorUnknownCommand(t *testing.T) {
	records := &sink.SliceSink{}
	d := NewDissector("a->b", 0, records)
	require.NoError(t, d.Feed(message(t, adb.ADBCommand(0x48545541), 2, "token"), time.Now()))
	got := records.Records()
	require.Len(t, got, 1)
	assert.False(t, got[0].Known)
	assert.Equal(t, "UNKNOWN(0x48545541)", got[0].Command)
}

func TestStreamNames(t *testing.T) {
	assert.Equal(t, "10.0.0.1:40000->10.0.0.2:5555", StreamName("10.0.0.1", "40000", "10.0.0.2", "5555"))
	assert.Equal(t, "[::1]:40000->[::1]:5555", StreamName("::1", "40000", "::1", "5555"))

	netFlow := gopacket.NewFlow(layers.EndpointIPv4, net.IPv4(10, 0, 0, 1).To4(), net.IPv4(10, 0, 0, 2).To4())
	tcpFlow, err := gopacket.FlowFromEndpoints(layers.NewTCPPortEndpoint(40000), layers.NewTCPPortEndpoint(5555))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:40000->10.0.0.2:5555", FlowStreamName(netFlow, tcpFlow))

	src := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1000}
	dst := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5555}
	assert.Equal(t, "127.0.0.1:1000->127.0.0.1:5555", AddrStreamName(src, dst))
}
