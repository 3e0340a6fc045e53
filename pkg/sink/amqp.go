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
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"jinr.ru/greenlab/go-adb/pkg/log"
)

const (
	AMQPExchangeKind   = "topic"
	AMQPPublishTimeout = 5 * time.Second
	AMQPRoutingPrefix  = "adb."
)

// Publisher is the part of amqp.Channel the sink uses
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes records as JSON to a topic exchange.
// The routing key is adb.<command>, e.g. adb.write or adb.unknown.
type AMQPSink struct {
	ctx      context.Context
	exchange string
	pub      Publisher
	conn     *amqp.Connection
}

// NewAMQPSink wraps an already opened channel
func NewAMQPSink(ctx context.Context, pub Publisher, exchange string) *AMQPSink {
	return &AMQPSink{
		ctx:      ctx,
		exchange: exchange,
		pub:      pub,
	}
}

// DialAMQP connects to the broker and declares the exchange
func DialAMQP(ctx context.Context, url, exchange string) (*AMQPSink, error) {
	log.Info("Connecting to AMQP broker, exchange: %s", exchange)
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, AMQPExchangeKind, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp exchange declare %s: %w", exchange, err)
	}
	s := NewAMQPSink(ctx, ch, exchange)
	s.conn = conn
	return s, nil
}

// RoutingKey returns the routing key a record is published with
func RoutingKey(rec *Record) string {
	if !rec.Known {
		return AMQPRoutingPrefix + "unknown"
	}
	return AMQPRoutingPrefix + strings.ToLower(rec.Command)
}

func (s *AMQPSink) Handle(rec *Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(s.ctx, AMQPPublishTimeout)
	defer cancel()
	return s.pub.PublishWithContext(ctx, s.exchange, RoutingKey(rec), false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   rec.Timestamp,
		MessageId:   fmt.Sprintf("%s/%d", rec.Stream, rec.Seq),
		Body:        body,
	})
}

// Close closes the broker connection if the sink opened it
func (s *AMQPSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
