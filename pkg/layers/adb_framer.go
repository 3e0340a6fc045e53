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
	"encoding/binary"
	"errors"
	"io"
	"math"
)

const (
	// ADBDefaultMaxPayload is the largest payload modern adbd negotiates (MAX_PAYLOAD, 1 MiB).
	// The wire format itself has no limit.
	ADBDefaultMaxPayload = 1024 * 1024
)

/*
 Framing is done in two stages. First the fixed header must be buffered to learn
 the payload length at offset 12, then exactly header + length bytes are collected
 and handed over as one message. There is no way to find the next message boundary
 once a length is wrong or bytes are lost, so such a stream is desynchronized
 for good.
*/

// ADBMessage is one complete ADB message as it was found on the wire
type ADBMessage struct {
	ADBHeader
	// Bytes holds the header followed by the payload
	Bytes []byte
}

// Payload returns the bytes following the header
func (m *ADBMessage) Payload() []byte {
	return m.Bytes[ADBHeaderLen:]
}

// ADBRequiredLength returns the total size of the message starting at prefix.
// prefix must hold at least the fixed header.
func ADBRequiredLength(prefix []byte) (int, error) {
	if len(prefix) < ADBHeaderLen {
		return 0, ErrInsufficientData{Need: ADBHeaderLen, Have: len(prefix)}
	}
	length := binary.LittleEndian.Uint32(prefix[ADBLengthOffset : ADBLengthOffset+4])
	if limit := uint64(math.MaxInt - ADBHeaderLen); uint64(length) > limit {
		// only reachable where int is 32 bit
		return 0, ErrPayloadTooLarge{Length: length, Limit: uint32(limit)}
	}
	return messageLen(length), nil
}

// ADBOnCompleteMessage slices a buffer holding exactly one message into header and payload.
// The message keeps a reference to buf.
func ADBOnCompleteMessage(buf []byte) (*ADBMessage, error) {
	required, err := ADBRequiredLength(buf)
	if err != nil {
		return nil, err
	}
	if len(buf) < required {
		return nil, ErrInsufficientData{Need: required, Have: len(buf)}
	}
	if len(buf) > required {
		return nil, ErrMessageLength{Want: required, Got: len(buf)}
	}
	header, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}
	return &ADBMessage{ADBHeader: header, Bytes: buf}, nil
}

// ADBFramer turns the bytes of one stream direction into complete messages.
// It is not safe for concurrent use, every stream needs its own framer.
type ADBFramer struct {
	buf []byte
	// expected is the total length of the message being collected, 0 while the header is incomplete
	expected   int
	maxPayload uint32
}

// NewADBFramer creates a framer which refuses payloads longer than maxPayload bytes.
// Zero means ADBDefaultMaxPayload.
func NewADBFramer(maxPayload uint32) *ADBFramer {
	if maxPayload == 0 {
		maxPayload = ADBDefaultMaxPayload
	}
	return &ADBFramer{
		maxPayload: maxPayload,
	}
}

// Pending returns the number of buffered bytes of the message in progress
func (f *ADBFramer) Pending() int {
	return len(f.buf)
}

// Reset drops the partially collected message
func (f *ADBFramer) Reset() {
	f.buf = nil
	f.expected = 0
}

// Need returns how many bytes in total the framer has to see
// before the message in progress is complete
func (f *ADBFramer) Need() int {
	if f.expected == 0 {
		return ADBHeaderLen
	}
	return f.expected
}

// Feed consumes a chunk of the stream and calls emit for every message completed by it.
// Messages are emitted in stream order and own their bytes.
// Feed stops at the first error returned by emit or by the length check,
// after ErrPayloadTooLarge the framer must not be fed again before Reset.
func (f *ADBFramer) Feed(chunk []byte, emit func(*ADBMessage) error) error {
	for len(chunk) > 0 {
		need := f.Need() - len(f.buf)
		if need > len(chunk) {
			f.buf = append(f.buf, chunk...)
			return nil
		}
		f.buf = append(f.buf, chunk[:need]...)
		chunk = chunk[need:]

		if f.expected == 0 {
			if err := f.checkHeader(); err != nil {
				return err
			}
			// header only message is complete right away
			if f.expected > len(f.buf) {
				continue
			}
		}

		msg, err := ADBOnCompleteMessage(f.buf)
		if err != nil {
			return err
		}
		f.buf = nil
		f.expected = 0
		if err := emit(msg); err != nil {
			return err
		}
	}
	return nil
}

func (f *ADBFramer) checkHeader() error {
	required, err := ADBRequiredLength(f.buf)
	if err != nil {
		return err
	}
	if length := uint32(required - ADBHeaderLen); length > f.maxPayload {
		return ErrPayloadTooLarge{Length: length, Limit: f.maxPayload}
	}
	f.expected = required
	if cap(f.buf) < required {
		grown := make([]byte, len(f.buf), required)
		copy(grown, f.buf)
		f.buf = grown
	}
	return nil
}

// ReadADBMessage reads exactly one message from r using blocking reads.
// io.EOF is returned only if the stream ends on a message boundary.
func ReadADBMessage(r io.Reader, maxPayload uint32) (*ADBMessage, error) {
	if maxPayload == 0 {
		maxPayload = ADBDefaultMaxPayload
	}
	header := make([]byte, ADBHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	required, err := ADBRequiredLength(header)
	if err != nil {
		return nil, err
	}
	if length := uint32(required - ADBHeaderLen); length > maxPayload {
		return nil, ErrPayloadTooLarge{Length: length, Limit: maxPayload}
	}
	buf := make([]byte, required)
	copy(buf, header)
	if _, err := io.ReadFull(r, buf[ADBHeaderLen:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return ADBOnCompleteMessage(buf)
}
