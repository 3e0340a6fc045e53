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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"jinr.ru/greenlab/go-adb/pkg/sink"
)

const (
	Namespace = "adb"
)

var (
	Messages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "messages_total",
		Help:      "Decoded ADB messages by command.",
	}, []string{"command"})

	PayloadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "payload_bytes_total",
		Help:      "Payload bytes of decoded ADB messages.",
	})

	BadMagic = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "bad_magic_total",
		Help:      "Decoded ADB messages whose magic is not the complement of the command.",
	})

	Streams = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "streams_total",
		Help:      "Stream directions seen by the dissector.",
	})

	Desync = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "desync_total",
		Help:      "Stream directions that could not be framed any further.",
	}, []string{"reason"})

	DiscardedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "discarded_bytes_total",
		Help:      "Bytes of incomplete trailing messages dropped at stream end.",
	})
)

func init() {
	prometheus.MustRegister(Messages, PayloadBytes, BadMagic, Streams, Desync, DiscardedBytes)
}

// Sink counts records and passes them on
type Sink struct {
	Next sink.Sink
}

func (s Sink) Handle(rec *sink.Record) error {
	command := rec.Command
	if !rec.Known {
		command = "UNKNOWN"
	}
	Messages.WithLabelValues(command).Inc()
	PayloadBytes.Add(float64(len(rec.Payload)))
	if !rec.MagicValid {
		BadMagic.Inc()
	}
	if s.Next == nil {
		return nil
	}
	return s.Next.Handle(rec)
}
