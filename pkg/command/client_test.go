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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jinr.ru/greenlab/go-adb/pkg/config"
	"jinr.ru/greenlab/go-adb/pkg/sink"
)

func newTestClient(t *testing.T) *ApiClient {
	t.Helper()
	records := []*sink.Record{
		{Stream: "a->b", Seq: 0, Command: "CONNECT"},
		{Stream: "a->b", Seq: 1, Command: "WRITE", Payload: []byte("hi")},
	}
	router := mux.NewRouter()
	router.HandleFunc("/api/streams", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]string{"a->b"})
	})
	router.HandleFunc("/api/records", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("stream") != "a->b" {
			http.Error(w, "stream not found", http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("command") == "WRITE" {
			json.NewEncoder(w).Encode(records[1:])
			return
		}
		json.NewEncoder(w).Encode(records)
	})
	router.HandleFunc("/api/records/{seq}", func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["seq"] != "1" {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(records[1])
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &ApiClient{Config: config.NewDefaultConfig(), ApiPrefix: server.URL + "/api"}
}

func TestNewApiClient(t *testing.T) {
	c := NewApiClient(config.NewDefaultConfig())
	assert.Equal(t, "http://127.0.0.1:8005/api", c.ApiPrefix)
}

func TestApiClientListStreams(t *testing.T) {
	streams, err := newTestClient(t).ListStreams()
	require.NoError(t, err)
	assert.Equal(t, []string{"a->b"}, streams)
}

func TestApiClientListRecords(t *testing.T) {
	c := newTestClient(t)
	records, err := c.ListRecords("a->b", "")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = c.ListRecords("a->b", "WRITE")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []byte("hi"), records[0].Payload)

	_, err = c.ListRecords("x", "")
	assert.ErrorContains(t, err, "stream not found")
}

func TestApiClientGetRecord(t *testing.T) {
	c := newTestClient(t)
	rec, err := c.GetRecord("a->b", 1)
	require.NoError(t, err)
	assert.Equal(t, "WRITE", rec.Command)

	_, err = c.GetRecord("a->b", 7)
	assert.ErrorContains(t, err, "404")
}
