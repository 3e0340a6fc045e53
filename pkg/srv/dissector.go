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
	"time"

	"jinr.ru/greenlab/go-adb/pkg/layers"
	"jinr.ru/greenlab/go-adb/pkg/log"
	"jinr.ru/greenlab/go-adb/pkg/sink"
	"jinr.ru/greenlab/go-adb/pkg/srv/metrics"
)

const (
	DesyncPayloadTooLarge = "payload_too_large"
	DesyncGap             = "gap"
)

// Dissector frames and decodes one direction of one stream.
// Each direction needs its own dissector, it is not safe for concurrent use.
type Dissector struct {
	Stream   string
	framer   *layers.ADBFramer
	sink     sink.Sink
	seq      uint64
	desynced bool
}

func NewDissector(stream string, maxPayload uint32, s sink.Sink) *Dissector {
	log.Debug("New dissector: stream: %s", stream)
	metrics.Streams.Inc()
	return &Dissector{
		Stream: stream,
		framer: layers.NewADBFramer(maxPayload),
		sink:   s,
	}
}

// Desynced reports whether the stream can not be framed any further
func (d *Dissector) Desynced() bool {
	return d.desynced
}

// Started reports whether any byte of the stream has been seen
func (d *Dissector) Started() bool {
	return d.seq > 0 || d.framer.Pending() > 0
}

// Pending returns an error describing the incomplete message in progress, nil if there is none
func (d *Dissector) Pending() error {
	if have := d.framer.Pending(); have > 0 {
		return layers.ErrInsufficientData{Need: d.framer.Need(), Have: have}
	}
	return nil
}

// Count returns the number of messages handed to the sink
func (d *Dissector) Count() uint64 {
	return d.seq
}

// Feed frames a chunk of stream data. Bytes fed after the stream
// got desynchronized are ignored.
func (d *Dissector) Feed(chunk []byte, ts time.Time) error {
	if d.desynced {
		return nil
	}
	err := d.framer.Feed(chunk, func(msg *layers.ADBMessage) error {
		return d.HandleMessage(msg, ts)
	})
	if err != nil {
		var tooLarge layers.ErrPayloadTooLarge
		if errors.As(err, &tooLarge) {
			log.Warning("Stream %s: %s", d.Stream, tooLarge)
			d.Desync(DesyncPayloadTooLarge)
		}
		return err
	}
	return nil
}

// HandleMessage decodes a complete message and hands the record to the sink.
// Sink errors are logged, the record is lost but framing goes on.
func (d *Dissector) HandleMessage(msg *layers.ADBMessage, ts time.Time) error {
	adb, err := layers.DecodeADB(msg.Bytes)
	if err != nil {
		return err
	}
	rec := sink.NewRecord(d.Stream, d.seq, ts, adb)
	d.seq++
	log.Debug("Decoded: %s", rec.Summary())
	if !adb.MagicValid() {
		log.Debug("Stream %s: message %d has wrong magic 0x%08x", d.Stream, rec.Seq, adb.Magic)
	}
	if err := d.sink.Handle(rec); err != nil {
		log.Error("Error while handling record: %s error: %s", rec.Summary(), err)
	}
	return nil
}

// Desync stops framing of the stream
func (d *Dissector) Desync(reason string) {
	if d.desynced {
		return
	}
	log.Warning("Stream %s is desynchronized (%s) after %d messages, ignoring the rest of it",
		d.Stream, reason, d.seq)
	metrics.Desync.WithLabelValues(reason).Inc()
	d.framer.Reset()
	d.desynced = true
}

// Close discards an incomplete trailing message
func (d *Dissector) Close() {
	if pending := d.framer.Pending(); pending > 0 {
		log.Debug("Stream %s closed with %d bytes of incomplete message, need %d",
			d.Stream, pending, d.framer.Need())
		metrics.DiscardedBytes.Add(float64(pending))
	}
	d.framer.Reset()
}
