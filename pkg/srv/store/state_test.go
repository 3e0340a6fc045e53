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

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jinr.ru/greenlab/go-adb/pkg/layers"
	"jinr.ru/greenlab/go-adb/pkg/sink"
	"jinr.ru/greenlab/go-adb/pkg/srv"
)

func newState(t *testing.T) *State {
	t.Helper()
	state, err := NewState(context.Background(), filepath.Join(t.TempDir(), "db", "records.db"))
	require.NoError(t, err)
	t.Cleanup(state.Close)
	return state
}

func record(stream string, seq uint64, command layers.ADBCommand, payload string) *sink.Record {
	return &sink.Record{
		Stream:       stream,
		Seq:          seq,
		Timestamp:    time.Unix(1700000000, 0).UTC(),
		Command:      command.String(),
		CommandValue: uint32(command),
		Known:        command.Known(),
		Length:       uint32(len(payload)),
		Magic:        command.Magic(),
		MagicValid:   true,
		Payload:      []byte(payload),
	}
}

func TestStateRecords(t *testing.T) {
	state := newState(t)
	const stream = "10.0.0.1:40000->10.0.0.2:5555"
	require.NoError(t, state.Handle(record(stream, 0, layers.ADBCommandConnect, "host::\x00")))
	require.NoError(t, state.Handle(record(stream, 1, layers.ADBCommandOpen, "shell:\x00")))
	require.NoError(t, state.Handle(record(stream, 2, layers.ADBCommandWrite, "ls")))
	require.NoError(t, state.Handle(record("other", 0, layers.ADBCommandReady, "")))

	streams, err := state.ListStreams()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{stream, "other"}, streams)

	records, err := state.GetRecords(stream, nil)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, uint64(i), rec.Seq)
	}
	assert.Equal(t, []byte("ls"), records[2].Payload)
	assert.True(t, records[0].Timestamp.Equal(time.Unix(1700000000, 0)))

	open := layers.ADBCommandOpen
	records, err = state.GetRecords(stream, &open)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "OPEN", records[0].Command)

	rec, err := state.GetRecord(stream, 2)
	require.NoError(t, err)
	assert.Equal(t, "WRITE", rec.Command)
}

func TestStateNotFound(t *testing.T) {
	state := newState(t)
	require.NoError(t, state.Handle(record("a", 0, layers.ADBCommandSync, "")))

	_, err := state.GetRecords("b", nil)
	assert.Equal(t, ErrStreamNotFound{Stream: "b"}, err)

	_, err = state.GetRecord("b", 0)
	assert.Equal(t, ErrStreamNotFound{Stream: "b"}, err)

	_, err = state.GetRecord("a", 5)
	assert.Equal(t, ErrRecordNotFound{Stream: "a", Seq: 5}, err)
}

func TestStateEmpty(t *testing.T) {
	streams, err := newState(t).ListStreams()
	require.NoError(t, err)
	assert.Empty(t, streams)
}

func headerOnly(command layers.ADBCommand) []byte {
	h := layers.ADBHeader{Command: command, Magic: command.Magic()}
	buf := make([]byte, layers.ADBHeaderLen)
	h.Serialize(buf)
	return buf
}

func TestStateKeepsRecordsOfReusedStreamName(t *testing.T) {
	state := newState(t)
	const stream = "10.0.0.1:40000->10.0.0.2:5555"

	first := srv.NewDissector(stream, 0, state)
	require.NoError(t, first.Feed(append(headerOnly(layers.ADBCommandConnect), headerOnly(layers.ADBCommandOpen)...), time.Now()))
	first.Close()

	// same 4-tuple again, the new dissector starts counting at 0
	second := srv.NewDissector(stream, 0, state)
	require.NoError(t, second.Feed(headerOnly(layers.ADBCommandClose), time.Now()))
	second.Close()

	records, err := state.GetRecords(stream, nil)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, want := range []string{"CONNECT", "OPEN", "CLOSE"} {
		assert.Equal(t, want, records[i].Command)
		assert.Equal(t, uint64(i), records[i].Seq)
	}

	rec, err := state.GetRecord(stream, 2)
	require.NoError(t, err)
	assert.Equal(t, "CLOSE", rec.Command)
}

func TestStateDoesNotChangeHandledRecord(t *testing.T) {
	state := newState(t)
	require.NoError(t, state.Handle(record("a", 0, layers.ADBCommandSync, "")))
	rec := record("a", 0, layers.ADBCommandWrite, "x")
	require.NoError(t, state.Handle(rec))
	assert.Equal(t, uint64(0), rec.Seq)

	stored, err := state.GetRecord("a", 1)
	require.NoError(t, err)
	assert.Equal(t, "WRITE", stored.Command)
}
