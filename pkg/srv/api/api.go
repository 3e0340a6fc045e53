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

// go-adb API
//
// RESTful APIs to browse decoded ADB messages
//
//	Schemes: http
//	Host: localhost:8005
//	Version: 1.0.0
//
//	Produces:
//	- application/json
//
// swagger:meta
package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-openapi/loads"
	"github.com/go-openapi/runtime/middleware"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jinr.ru/greenlab/go-adb/pkg/config"
	"jinr.ru/greenlab/go-adb/pkg/layers"
	"jinr.ru/greenlab/go-adb/pkg/log"
	"jinr.ru/greenlab/go-adb/pkg/srv/store"
)

const (
	StreamParam  = "stream"
	CommandParam = "command"
)

//go:embed swagger.json
var swaggerJSON []byte

type ApiServer struct {
	context.Context
	*config.Config
	*mux.Router
	state *store.State
}

func NewApiServer(ctx context.Context, cfg *config.Config, state *store.State) (*ApiServer, error) {
	log.Info("Initializing API server with address: %s", cfg.ApiAddr())
	s := &ApiServer{
		Context: ctx,
		Config:  cfg,
		state:   state,
	}
	s.configureRouter()
	return s, nil
}

// Run serves the API until the context is done
func (s *ApiServer) Run() error {
	log.Info("Starting API server: address: %s", s.Config.ApiAddr())
	handler, err := s.Handler()
	if err != nil {
		return err
	}
	accessLog := log.Writer()
	defer accessLog.Close()

	httpServer := &http.Server{
		Handler: handlers.LoggingHandler(accessLog, handler),
		Addr:    s.Config.ApiAddr(),
	}
	go func() {
		<-s.Context.Done()
		httpServer.Close()
	}()
	err = httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return s.Context.Err()
	}
	return err
}

// Handler returns the router wrapped with panic recovery and the API docs.
// The embedded swagger document is validated first.
func (s *ApiServer) Handler() (http.Handler, error) {
	doc, err := loads.Analyzed(swaggerJSON, "")
	if err != nil {
		return nil, err
	}
	var handler http.Handler = s.Router
	handler = middleware.Redoc(middleware.RedocOpts{Path: "docs", SpecURL: "/swagger.json", Title: "go-adb API"}, handler)
	handler = middleware.Spec("/", doc.Raw(), handler)
	return handlers.RecoveryHandler()(handler), nil
}

func (s *ApiServer) configureRouter() {
	s.Router = mux.NewRouter()
	subRouter := s.Router.PathPrefix("/api").Subrouter()
	subRouter.HandleFunc("/streams", s.handleStreams()).Methods("GET")
	subRouter.HandleFunc("/records", s.handleRecords()).Methods("GET")
	subRouter.HandleFunc("/records/{seq:[0-9]+}", s.handleRecord()).Methods("GET")
	s.Router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

func (s *ApiServer) handleStreams() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Handling streams request")
		streams, err := s.state.ListStreams()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, streams)
	}
}

func (s *ApiServer) handleRecords() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stream := r.URL.Query().Get(StreamParam)
		if stream == "" {
			http.Error(w, "stream parameter is required", http.StatusBadRequest)
			return
		}
		var command *layers.ADBCommand
		if name := r.URL.Query().Get(CommandParam); name != "" {
			parsed, err := layers.ParseADBCommand(name)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			command = &parsed
		}
		log.Debug("Handling records request: stream: %s", stream)
		records, err := s.state.GetRecords(stream, command)
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, records)
	}
}

func (s *ApiServer) handleRecord() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stream := r.URL.Query().Get(StreamParam)
		if stream == "" {
			http.Error(w, "stream parameter is required", http.StatusBadRequest)
			return
		}
		seq, err := strconv.ParseUint(mux.Vars(r)["seq"], 10, 64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		record, err := s.state.GetRecord(stream, seq)
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, record)
	}
}

func statusFor(err error) int {
	var streamNotFound store.ErrStreamNotFound
	var recordNotFound store.ErrRecordNotFound
	if errors.As(err, &streamNotFound) || errors.As(err, &recordNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Error while encoding response: %s", err)
	}
}
