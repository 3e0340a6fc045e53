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
	"fmt"
	"strconv"
	"strings"
)

const (
	// ADBPort is the TCP port adbd listens on for network connections
	ADBPort = 5555
	// ADBHeaderLen is the size of the fixed ADB message header
	ADBHeaderLen = 24
	// Header field offsets. All fields are little endian uint32.
	ADBCommandOffset = 0
	ADBArg0Offset    = 4
	ADBArg1Offset    = 8
	ADBLengthOffset  = 12
	ADBCrc32Offset   = 16
	ADBMagicOffset   = 20
)

// ADBCommand is the opcode in the first word of an ADB header.
// Values outside the six known opcodes are kept as they are and reported as unknown.
type ADBCommand uint32

const (
	ADBCommandSync    ADBCommand = 0x434e5953
	ADBCommandConnect ADBCommand = 0x4e584e43
	ADBCommandOpen    ADBCommand = 0x4e45504f
	ADBCommandReady   ADBCommand = 0x59414b4f
	ADBCommandClose   ADBCommand = 0x45534c43
	ADBCommandWrite   ADBCommand = 0x45545257
)

// ADBCommands lists the known opcodes in protocol order
var ADBCommands = []ADBCommand{
	ADBCommandSync,
	ADBCommandConnect,
	ADBCommandOpen,
	ADBCommandReady,
	ADBCommandClose,
	ADBCommandWrite,
}

// Known reports whether the command is one of the six opcodes of the protocol
func (c ADBCommand) Known() bool {
	switch c {
	case ADBCommandSync, ADBCommandConnect, ADBCommandOpen,
		ADBCommandReady, ADBCommandClose, ADBCommandWrite:
		return true
	default:
		return false
	}
}

// String returns the display name of the command, e.g. CONNECT.
// Unknown commands are rendered as UNKNOWN(0x........).
func (c ADBCommand) String() string {
	switch c {
	case ADBCommandSync:
		return "SYNC"
	case ADBCommandConnect:
		return "CONNECT"
	case ADBCommandOpen:
		return "OPEN"
	case ADBCommandReady:
		return "READY"
	case ADBCommandClose:
		return "CLOSE"
	case ADBCommandWrite:
		return "WRITE"
	default:
		return fmt.Sprintf("UNKNOWN(0x%08x)", uint32(c))
	}
}

// Mnemonic returns the four ASCII characters the opcode is built from
// as they appear on the wire, e.g. CNXN or OKAY.
func (c ADBCommand) Mnemonic() string {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(c))
	for _, ch := range b {
		if ch < 0x20 || ch > 0x7e {
			return ""
		}
	}
	return string(b)
}

// Magic returns the value of the magic field a well formed header carries for the command
func (c ADBCommand) Magic() uint32 {
	return ^uint32(c)
}

// ParseADBCommand accepts a display name (WRITE), a wire mnemonic (WRTE)
// or a numeric value (0x45545257) and returns the command.
func ParseADBCommand(s string) (ADBCommand, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for _, c := range ADBCommands {
		if name == c.String() || name == c.Mnemonic() {
			return c, nil
		}
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, ErrUnknownCommandName{Name: s}
	}
	return ADBCommand(v), nil
}
