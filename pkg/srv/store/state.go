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
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-adb/pkg/layers"
	"jinr.ru/greenlab/go-adb/pkg/log"
	"jinr.ru/greenlab/go-adb/pkg/sink"
)

const (
	BucketPrefix = "stream_"
	OpenTimeout  = time.Second
)

// State keeps decoded records in a bbolt database, one bucket per stream direction
type State struct {
	context.Context
	DB *bbolt.DB
}

var _ sink.Sink = &State{}

func NewState(ctx context.Context, dbPath string) (*State, error) {
	log.Info("Opening record database: %s", dbPath)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	return &State{
		Context: ctx,
		DB:      db,
	}, nil
}

// Close ...
func (s *State) Close() {
	s.DB.Close()
}

func BucketName(stream string) string {
	return fmt.Sprintf("%s%s", BucketPrefix, stream)
}

func uint64ToByte(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Handle appends the record to its stream. The stored copy gets the position
// within the stored stream as Seq, so streams fed by several dissectors
// (a reused 4-tuple, a second capture file) keep all of their records.
func (s *State) Handle(rec *sink.Record) error {
	log.Debug("Storing record: %s", rec.Summary())
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(BucketName(rec.Stream)))
		if err != nil {
			return err
		}
		next, err := b.NextSequence()
		if err != nil {
			return err
		}
		stored := *rec
		stored.Seq = next - 1
		data, err := yaml.Marshal(&stored)
		if err != nil {
			return err
		}
		return b.Put(uint64ToByte(stored.Seq), data)
	})
}

// ListStreams returns the names of all streams having records
func (s *State) ListStreams() ([]string, error) {
	log.Debug("Listing streams")
	streams := []string{}
	err := s.DB.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			if strings.HasPrefix(string(name), BucketPrefix) {
				streams = append(streams, strings.TrimPrefix(string(name), BucketPrefix))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return streams, nil
}

// GetRecords returns the records of a stream in sequence order.
// If command is not nil only records with this command are returned.
func (s *State) GetRecords(stream string, command *layers.ADBCommand) ([]*sink.Record, error) {
	log.Debug("Getting records: stream: %s", stream)
	records := []*sink.Record{}
	err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName(stream)))
		if b == nil {
			return ErrStreamNotFound{Stream: stream}
		}
		return b.ForEach(func(_, v []byte) error {
			rec := &sink.Record{}
			if err := yaml.Unmarshal(v, rec); err != nil {
				log.Error("Error while unmarshalling record: stream: %s error: %s", stream, err)
				return err
			}
			if command != nil && rec.ADBCommand() != *command {
				return nil
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetRecord returns one record of a stream
func (s *State) GetRecord(stream string, seq uint64) (*sink.Record, error) {
	log.Debug("Getting record: stream: %s seq: %d", stream, seq)
	rec := &sink.Record{}
	err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName(stream)))
		if b == nil {
			return ErrStreamNotFound{Stream: stream}
		}
		v := b.Get(uint64ToByte(seq))
		if v == nil {
			return ErrRecordNotFound{Stream: stream, Seq: seq}
		}
		return yaml.Unmarshal(v, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
