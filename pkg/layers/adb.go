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
	"encoding/hex"
	"math"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"jinr.ru/greenlab/go-adb/pkg/log"
)

const (
	// ADBLayerNum identifies the layer
	ADBLayerNum = 1995
)

// ADBHeader is the fixed 24 byte header of every ADB message
type ADBHeader struct {
	Command ADBCommand
	Arg0    uint32
	Arg1    uint32
	Length  uint32 // payload length in bytes NOT including the header
	Crc32   uint32 // adbd fills it with the byte sum of the payload, it is never checked here
	Magic   uint32 // command ^ 0xffffffff
}

// ADBLayer is one decoded ADB message: header fields plus the payload
type ADBLayer struct {
	layers.BaseLayer
	ADBHeader
}

var ADBLayerType = gopacket.RegisterLayerType(ADBLayerNum,
	gopacket.LayerTypeMetadata{Name: "ADBLayerType", Decoder: gopacket.DecodeFunc(decodeADBLayer)})

// LayerType returns the type of the ADB layer in the layer catalog
func (a *ADBLayer) LayerType() gopacket.LayerType {
	return ADBLayerType
}

// CanDecode is from the DecodingLayer interface
func (a *ADBLayer) CanDecode() gopacket.LayerClass {
	return ADBLayerType
}

// NextLayerType returns gopacket.LayerTypePayload for messages carrying data.
// The payload is never interpreted.
func (a *ADBLayer) NextLayerType() gopacket.LayerType {
	if len(a.Payload) == 0 {
		return gopacket.LayerTypeZero
	}
	return gopacket.LayerTypePayload
}

// MagicValid reports whether the magic field is the complement of the command.
// It is informational only, messages with a bad magic are decoded anyway.
func (a *ADBLayer) MagicValid() bool {
	return a.Magic == a.Command.Magic()
}

// DecodeHeader reads the six header fields from the first 24 bytes of buf
func DecodeHeader(buf []byte) (ADBHeader, error) {
	if len(buf) < ADBHeaderLen {
		return ADBHeader{}, ErrInsufficientData{Need: ADBHeaderLen, Have: len(buf)}
	}
	return ADBHeader{
		Command: ADBCommand(binary.LittleEndian.Uint32(buf[ADBCommandOffset : ADBCommandOffset+4])),
		Arg0:    binary.LittleEndian.Uint32(buf[ADBArg0Offset : ADBArg0Offset+4]),
		Arg1:    binary.LittleEndian.Uint32(buf[ADBArg1Offset : ADBArg1Offset+4]),
		Length:  binary.LittleEndian.Uint32(buf[ADBLengthOffset : ADBLengthOffset+4]),
		Crc32:   binary.LittleEndian.Uint32(buf[ADBCrc32Offset : ADBCrc32Offset+4]),
		Magic:   binary.LittleEndian.Uint32(buf[ADBMagicOffset : ADBMagicOffset+4]),
	}, nil
}

// Serialize writes the header to the first 24 bytes of buf
func (h *ADBHeader) Serialize(buf []byte) {
	binary.LittleEndian.PutUint32(buf[ADBCommandOffset:ADBCommandOffset+4], uint32(h.Command))
	binary.LittleEndian.PutUint32(buf[ADBArg0Offset:ADBArg0Offset+4], h.Arg0)
	binary.LittleEndian.PutUint32(buf[ADBArg1Offset:ADBArg1Offset+4], h.Arg1)
	binary.LittleEndian.PutUint32(buf[ADBLengthOffset:ADBLengthOffset+4], h.Length)
	binary.LittleEndian.PutUint32(buf[ADBCrc32Offset:ADBCrc32Offset+4], h.Crc32)
	binary.LittleEndian.PutUint32(buf[ADBMagicOffset:ADBMagicOffset+4], h.Magic)
}

// messageLen returns the size of a message carrying length payload bytes.
// It saturates at math.MaxInt where int is 32 bit.
func messageLen(length uint32) int {
	if uint64(length) > uint64(math.MaxInt-ADBHeaderLen) {
		return math.MaxInt
	}
	return ADBHeaderLen + int(length)
}

// ADBDataCheck is the payload checksum adbd puts into the crc32 field
func ADBDataCheck(payload []byte) uint32 {
	var sum uint32
	for _, b := range payload {
		sum += uint32(b)
	}
	return sum
}

// SerializeTo prepends the ADB header to whatever is already in the SerializeBuffer.
// With FixLengths the length field is set to the size of the buffered payload,
// with ComputeChecksums the crc32 and magic fields are recomputed.
func (a *ADBLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	payload := b.Bytes()
	if opts.FixLengths {
		a.Length = uint32(len(payload))
	}
	if opts.ComputeChecksums {
		a.Crc32 = ADBDataCheck(payload)
		a.Magic = a.Command.Magic()
	}
	headerBytes, err := b.PrependBytes(ADBHeaderLen)
	if err != nil {
		return err
	}
	a.ADBHeader.Serialize(headerBytes)
	return nil
}

// DecodeFromBytes decodes one complete ADB message.
// data must hold the header and the whole payload, extra trailing bytes are not part of the message.
// The layer references data, use DecodeADB to get a copy.
func (a *ADBLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	header, err := DecodeHeader(data)
	if err != nil {
		df.SetTruncated()
		return err
	}
	if uint64(header.Length) > uint64(len(data)-ADBHeaderLen) {
		df.SetTruncated()
		return ErrInsufficientData{Need: messageLen(header.Length), Have: len(data)}
	}
	end := ADBHeaderLen + int(header.Length)

	a.BaseLayer = layers.BaseLayer{
		Contents: data[:ADBHeaderLen],
		Payload:  data[ADBHeaderLen:end],
	}
	a.ADBHeader = header
	return nil
}

// DecodeADB decodes a complete message buffer into a record that does not share memory with buf
func DecodeADB(buf []byte) (*ADBLayer, error) {
	owned := make([]byte, len(buf))
	copy(owned, buf)
	a := &ADBLayer{}
	if err := a.DecodeFromBytes(owned, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}
	log.Debug("DecodeADB: command: %s arg0: %d arg1: %d length: %d", a.Command, a.Arg0, a.Arg1, a.Length)
	return a, nil
}

// Dump returns a hex dump of the message for debug logs
func (a *ADBLayer) Dump() string {
	return hex.Dump(append(append([]byte{}, a.Contents...), a.Payload...))
}

func decodeADBLayer(data []byte, p gopacket.PacketBuilder) error {
	a := &ADBLayer{}
	err := a.DecodeFromBytes(data, p)
	if err != nil {
		log.Debug("Error while decoding ADB layer: %s", err)
		return err
	}
	p.AddLayer(a)
	if len(a.Payload) == 0 {
		return nil
	}
	return p.NextDecoder(a.NextLayerType())
}
