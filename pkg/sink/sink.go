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

package sink

import (
	"fmt"
	"io"
	"sync"
	"time"

	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-adb/pkg/layers"
	"jinr.ru/greenlab/go-adb/pkg/log"
)

// Record is a decoded ADB message together with the stream it was found in
type Record struct {
	Stream       string    `json:"stream"`
	Seq          uint64    `json:"seq"`
	Timestamp    time.Time `json:"timestamp"`
	Command      string    `json:"command"`
	CommandValue uint32    `json:"commandValue"`
	Known        bool      `json:"known"`
	Arg0         uint32    `json:"arg0"`
	Arg1         uint32    `json:"arg1"`
	Length       uint32    `json:"length"`
	Crc32        uint32    `json:"crc32"`
	Magic        uint32    `json:"magic"`
	MagicValid   bool      `json:"magicValid"`
	Payload      []byte    `json:"payload,omitempty"`
}

// NewRecord copies the fields of a decoded message into a record
func NewRecord(stream string, seq uint64, ts time.Time, adb *layers.ADBLayer) *Record {
	payload := make([]byte, len(adb.Payload))
	copy(payload, adb.Payload)
	return &Record{
		Stream:       stream,
		Seq:          seq,
		Timestamp:    ts,
		Command:      adb.Command.String(),
		CommandValue: uint32(adb.Command),
		Known:        adb.Command.Known(),
		Arg0:         adb.Arg0,
		Arg1:         adb.Arg1,
		Length:       adb.Length,
		Crc32:        adb.Crc32,
		Magic:        adb.Magic,
		MagicValid:   adb.MagicValid(),
		Payload:      payload,
	}
}

// ADBCommand returns the command of the record
func (r *Record) ADBCommand() layers.ADBCommand {
	return layers.ADBCommand(r.CommandValue)
}

// Summary is a one line description like the info column of a packet list
func (r *Record) Summary() string {
	return fmt.Sprintf("%s #%d %s arg0=%d arg1=%d len=%d", r.Stream, r.Seq, r.Command, r.Arg0, r.Arg1, r.Length)
}

func (r *Record) String() string {
	result, err := yaml.Marshal(r)
	if err != nil {
		log.Error("Error occured while marshaling record, %s", err)
		return ""
	}
	return fmt.Sprintf("---\n%s", string(result))
}

// Sink receives decoded records in stream order
type Sink interface {
	Handle(rec *Record) error
}

// Func adapts a function to the Sink interface
type Func func(rec *Record) error

func (f Func) Handle(rec *Record) error {
	return f(rec)
}

// Multi hands every record to all sinks, the first error is returned
// after all sinks have seen the record
type Multi []Sink

func (m Multi) Handle(rec *Record) error {
	var first error
	for _, s := range m {
		if err := s.Handle(rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// YAMLSink writes every record as a YAML document
type YAMLSink struct {
	mu  sync.Mutex
	out io.Writer
}

func NewYAMLSink(out io.Writer) *YAMLSink {
	return &YAMLSink{out: out}
}

func (s *YAMLSink) Handle(rec *Record) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.out, "---\n%s", data); err != nil {
		return err
	}
	return nil
}

// SliceSink keeps all records in memory
type SliceSink struct {
	mu      sync.Mutex
	records []*Record
}

func (s *SliceSink) Handle(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of the collected records
func (s *SliceSink) Records() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]*Record, len(s.records))
	copy(result, s.records)
	return result
}
