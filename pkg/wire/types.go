// Package wire implements the binary client-server protocol: a fixed set
// of strongly typed messages encoded onto a raw byte stream.
//
// Every value uses a fixed, self-describing scheme: an enum is its
// variant index as a 4-byte big-endian unsigned integer followed by that
// variant's fields, fixed-width integers are raw big-endian bytes, text
// is an 8-byte big-endian length followed by UTF-8 bytes, and structs are
// the concatenation of their fields with no padding. There is no outer
// length-prefix frame; the reader knows from its protocol state which
// message type is expected next and decodes exactly that type.
package wire

// ProtocolVersion is sent in the greeting and bumped on incompatible
// protocol changes.
const ProtocolVersion uint8 = 1

// WelcomeMessage is the server's default greeting text.
const WelcomeMessage = "Welcome to the fabulous uoSQL database."

// PkgType is the wire tag identifying which message variant follows.
type PkgType uint32

const (
	PkgGreet PkgType = iota
	PkgLogin
	PkgCommand
	PkgError
	PkgOk
	PkgResponse
	PkgAccGranted
	PkgAccDenied

	pkgTypeCount
)

func (p PkgType) String() string {
	switch p {
	case PkgGreet:
		return "Greet"
	case PkgLogin:
		return "Login"
	case PkgCommand:
		return "Command"
	case PkgError:
		return "Error"
	case PkgOk:
		return "Ok"
	case PkgResponse:
		return "Response"
	case PkgAccGranted:
		return "AccGranted"
	case PkgAccDenied:
		return "AccDenied"
	default:
		return "Unknown"
	}
}

// CommandKind discriminates the Command sub-variants.
type CommandKind uint32

const (
	CmdPing CommandKind = iota
	CmdQuit
	CmdQuery

	commandKindCount
)

// Command is a client request. Query carries the query text for
// CmdQuery and is empty otherwise.
type Command struct {
	Kind  CommandKind
	Query string
}

// Greeting is the first message a server sends on a fresh connection.
type Greeting struct {
	ProtocolVersion uint8
	Message         string
}

// Login carries the credentials the client presents after the greeting.
type Login struct {
	Username string
	Password string
}

// Error codes carried by ClientErrMsg.
const (
	CodeIo uint16 = iota
	CodeCodec
	CodeUnexpectedPkg
	CodeUnknownCmd
	CodeQuery
	CodeAuth
)

// ClientErrMsg is the payload of an Error package: a stable numeric code
// plus a human-readable message.
type ClientErrMsg struct {
	Code uint16
	Msg  string
}

func (e ClientErrMsg) Error() string {
	return e.Msg
}
