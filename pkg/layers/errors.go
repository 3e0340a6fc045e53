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

package layers

import (
	"fmt"
)

// ErrInsufficientData returned when a buffer does not yet hold enough bytes.
// It is not fatal, the caller must wait for Need bytes in total and try again.
type ErrInsufficientData struct {
	Need int
	Have int
}

func (e ErrInsufficientData) Error() string {
	return fmt.Sprintf("Insufficient ADB data: need %d bytes, have %d", e.Need, e.Have)
}

// ErrPayloadTooLarge returned when a header declares a payload longer than the configured limit.
// The stream this header came from can not be framed any further.
type ErrPayloadTooLarge struct {
	Length uint32
	Limit  uint32
}

func (e ErrPayloadTooLarge) Error() string {
	return fmt.Sprintf("ADB payload length %d exceeds limit %d", e.Length, e.Limit)
}

// ErrMessageLength returned when a buffer handed over as one complete message
// is not exactly as long as its header says
type ErrMessageLength struct {
	Want int
	Got  int
}

func (e ErrMessageLength) Error() string {
	return fmt.Sprintf("Wrong ADB message length: header says %d bytes, buffer has %d", e.Want, e.Got)
}

// ErrUnknownCommandName returned when a command filter can not be parsed
type ErrUnknownCommandName struct {
	Name string
}

func (e ErrUnknownCommandName) Error() string {
	return fmt.Sprintf("Unknown ADB command: %s", e.Name)
}
