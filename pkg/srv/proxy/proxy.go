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

package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"jinr.ru/greenlab/go-adb/pkg/config"
	"jinr.ru/greenlab/go-adb/pkg/layers"
	"jinr.ru/greenlab/go-adb/pkg/log"
	"jinr.ru/greenlab/go-adb/pkg/sink"
	"jinr.ru/greenlab/go-adb/pkg/srv"
)

const (
	DialTimeout = 5 * time.Second
)

// ProxyServer sits between an ADB host and adbd. Bytes are forwarded unchanged
// in both directions while every direction is dissected with blocking reads.
type ProxyServer struct {
	srv.Server
	wg sync.WaitGroup
}

func NewProxyServer(ctx context.Context, cfg *config.Config, s sink.Sink) *ProxyServer {
	log.Info("Initializing proxy server: listen: %s upstream: %s", cfg.ProxyAddr(), cfg.UpstreamAddr())
	return &ProxyServer{
		Server: srv.Server{
			Context: ctx,
			Config:  cfg,
			Sink:    s,
		},
	}
}

func (s *ProxyServer) Run() error {
	l, err := net.Listen("tcp", s.Config.ProxyAddr())
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l until the context is done
func (s *ProxyServer) Serve(l net.Listener) error {
	log.Info("Proxy server listening on %s", l.Addr())
	go func() {
		<-s.Context.Done()
		l.Close()
	}()

	defer s.wg.Wait()
	for {
		conn, err := l.Accept()
		if err != nil {
			if s.Context.Err() != nil {
				return s.Context.Err()
			}
			return err
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *ProxyServer) handleConn(client net.Conn) {
	defer s.wg.Done()
	defer client.Close()
	log.Info("Accepted connection from %s", client.RemoteAddr())

	dialer := net.Dialer{Timeout: DialTimeout}
	upstream, err := dialer.DialContext(s.Context, "tcp", s.Config.UpstreamAddr())
	if err != nil {
		log.Error("Error while connecting to upstream %s: %s", s.Config.UpstreamAddr(), err)
		return
	}
	defer upstream.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-s.Context.Done():
			client.Close()
			upstream.Close()
		case <-stop:
		}
	}()

	var pipes sync.WaitGroup
	pipes.Add(2)
	go func() {
		defer pipes.Done()
		s.pipe(client, upstream, srv.AddrStreamName(client.RemoteAddr(), upstream.RemoteAddr()))
	}()
	go func() {
		defer pipes.Done()
		s.pipe(upstream, client, srv.AddrStreamName(upstream.RemoteAddr(), client.RemoteAddr()))
	}()
	pipes.Wait()
	log.Info("Connection from %s closed", client.RemoteAddr())
}

// pipe copies src to dst and dissects everything it copies.
// Once the direction can not be framed the rest is copied without dissection.
func (s *ProxyServer) pipe(src, dst net.Conn, stream string) {
	d := srv.NewDissector(stream, s.Config.MaxPayload, s.Sink)
	defer d.Close()
	defer closeWrite(dst)

	r := io.TeeReader(src, dst)
	for {
		msg, err := layers.ReadADBMessage(r, s.Config.MaxPayload)
		if err != nil {
			var tooLarge layers.ErrPayloadTooLarge
			switch {
			case err == io.EOF:
				log.Debug("Stream %s ended after %d messages", stream, d.Count())
			case errors.As(err, &tooLarge):
				log.Warning("Stream %s: %s", stream, tooLarge)
				d.Desync(srv.DesyncPayloadTooLarge)
				if _, err := io.Copy(dst, src); err != nil {
					log.Debug("Stream %s: %s", stream, err)
				}
			default:
				log.Debug("Stream %s: %s", stream, err)
			}
			return
		}
		if err := d.HandleMessage(msg, time.Now()); err != nil {
			log.Error("Stream %s: %s", stream, err)
		}
	}
}

func closeWrite(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.CloseWrite()
		return
	}
	conn.Close()
}
