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

package command

import (
	"context"
	"io"

	"jinr.ru/greenlab/go-adb/pkg/config"
	"jinr.ru/greenlab/go-adb/pkg/log"
	"jinr.ru/greenlab/go-adb/pkg/sink"
	"jinr.ru/greenlab/go-adb/pkg/srv/api"
	"jinr.ru/greenlab/go-adb/pkg/srv/capture"
	"jinr.ru/greenlab/go-adb/pkg/srv/metrics"
	"jinr.ru/greenlab/go-adb/pkg/srv/proxy"
	"jinr.ru/greenlab/go-adb/pkg/srv/store"
)

// SinkOptions selects where decoded records go
type SinkOptions struct {
	// Store keeps records in the database at cfg.DBPath
	Store bool
	// Print writes records as YAML documents
	Print io.Writer
}

// Pipeline is the set of sinks shared by the servers of one command
type Pipeline struct {
	sink.Sink
	State   *store.State
	closers []func()
}

// NewPipeline opens the sinks selected by opts and the AMQP publisher if one is configured
func NewPipeline(ctx context.Context, cfg *config.Config, opts SinkOptions) (*Pipeline, error) {
	p := &Pipeline{}
	var sinks sink.Multi
	if opts.Store {
		state, err := store.NewState(ctx, cfg.DBPath)
		if err != nil {
			return nil, err
		}
		p.State = state
		p.closers = append(p.closers, state.Close)
		sinks = append(sinks, state)
	}
	if opts.Print != nil {
		sinks = append(sinks, sink.NewYAMLSink(opts.Print))
	}
	if cfg.AMQPConfig != nil && cfg.AMQPConfig.URL != "" {
		publisher, err := sink.DialAMQP(ctx, cfg.AMQPConfig.URL, cfg.AMQPConfig.Exchange)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.closers = append(p.closers, func() { publisher.Close() })
		sinks = append(sinks, publisher)
	}
	p.Sink = metrics.Sink{Next: sinks}
	return p, nil
}

// Close closes all sinks
func (p *Pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// StartCaptureServer dissects capture files one after another
func StartCaptureServer(ctx context.Context, cfg *config.Config, opts SinkOptions, paths []string) error {
	p, err := NewPipeline(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer p.Close()

	s := capture.NewCaptureServer(ctx, cfg, p)
	for _, path := range paths {
		stats, err := s.ReadFile(path)
		if err != nil {
			return err
		}
		log.Info("%s: %d messages in %d streams", path, stats.Messages, stats.Streams)
	}
	return nil
}

// StartProxyServer runs the proxy, with api true the API server is run next to it
func StartProxyServer(ctx context.Context, cfg *config.Config, opts SinkOptions, withApi bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts.Store = opts.Store || withApi
	p, err := NewPipeline(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer p.Close()

	errChan := make(chan error, 2)
	running := 1
	if withApi {
		apiServer, err := api.NewApiServer(ctx, cfg, p.State)
		if err != nil {
			return err
		}
		running++
		go func() {
			errChan <- apiServer.Run()
		}()
	}
	go func() {
		errChan <- proxy.NewProxyServer(ctx, cfg, p).Run()
	}()

	// the first server to stop stops the others, sinks are closed after all of them returned
	err = <-errChan
	cancel()
	for i := 1; i < running; i++ {
		<-errChan
	}
	return err
}

// StartApiServer serves the records stored in the database
func StartApiServer(ctx context.Context, cfg *config.Config) error {
	state, err := store.NewState(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer state.Close()

	s, err := api.NewApiServer(ctx, cfg, state)
	if err != nil {
		return err
	}
	return s.Run()
}
