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
	"errors"
	"fmt"
	"net/http"

	"github.com/imroc/req"

	"jinr.ru/greenlab/go-adb/pkg/config"
	"jinr.ru/greenlab/go-adb/pkg/sink"
	"jinr.ru/greenlab/go-adb/pkg/srv/api"
)

type ApiClient struct {
	*config.Config
	ApiPrefix string
}

func NewApiClient(cfg *config.Config) *ApiClient {
	return &ApiClient{
		Config:    cfg,
		ApiPrefix: fmt.Sprintf("http://%s/api", cfg.ApiAddr()),
	}
}

func (c *ApiClient) streamsUrl() string {
	return fmt.Sprintf("%s/streams", c.ApiPrefix)
}

func (c *ApiClient) recordsUrl() string {
	return fmt.Sprintf("%s/records", c.ApiPrefix)
}

func (c *ApiClient) recordUrl(seq uint64) string {
	return fmt.Sprintf("%s/records/%d", c.ApiPrefix, seq)
}

func checkStatus(r *req.Resp) error {
	if r.Response().StatusCode != http.StatusOK {
		body, _ := r.ToString()
		if body != "" {
			return fmt.Errorf("%s: %s", r.Response().Status, body)
		}
		return errors.New(r.Response().Status)
	}
	return nil
}

// ListStreams sends request to get the names of all streams having records
func (c *ApiClient) ListStreams() ([]string, error) {
	r, err := req.Get(c.streamsUrl())
	if err != nil {
		return nil, err
	}
	if err := checkStatus(r); err != nil {
		return nil, err
	}
	var streams []string
	if err := r.ToJSON(&streams); err != nil {
		return nil, err
	}
	return streams, nil
}

// ListRecords sends request to get the records of a stream.
// command may be empty, otherwise only records with this command are returned.
func (c *ApiClient) ListRecords(stream, command string) ([]*sink.Record, error) {
	params := req.Param{api.StreamParam: stream}
	if command != "" {
		params[api.CommandParam] = command
	}
	r, err := req.Get(c.recordsUrl(), params)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(r); err != nil {
		return nil, err
	}
	var records []*sink.Record
	if err := r.ToJSON(&records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetRecord sends request to get one record of a stream
func (c *ApiClient) GetRecord(stream string, seq uint64) (*sink.Record, error) {
	r, err := req.Get(c.recordUrl(seq), req.Param{api.StreamParam: stream})
	if err != nil {
		return nil, err
	}
	if err := checkStatus(r); err != nil {
		return nil, err
	}
	rec := &sink.Record{}
	if err := r.ToJSON(rec); err != nil {
		return nil, err
	}
	return rec, nil
}
