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
	"fmt"
)

// ErrStreamNotFound returned when there are no records for a stream
type ErrStreamNotFound struct {
	Stream string
}

func (e ErrStreamNotFound) Error() string {
	return fmt.Sprintf("Stream not found: %s", e.Stream)
}

// ErrRecordNotFound returned when a stream has no record with the given sequence number
type ErrRecordNotFound struct {
	Stream string
	Seq    uint64
}

func (e ErrRecordNotFound) Error() string {
	return fmt.Sprintf("Record not found: stream: %s seq: %d", e.Stream, e.Seq)
}
