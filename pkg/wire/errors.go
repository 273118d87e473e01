package wire

import "errors"

var (
	// ErrUnexpectedPkg is returned when the tag read off the stream does
	// not match what the current protocol state allows.
	ErrUnexpectedPkg = errors.New("received unexpected package")

	// ErrUnknownCmd is returned when a Command carries a variant index
	// this implementation does not know.
	ErrUnknownCmd = errors.New("cannot interpret command: unknown")

	// ErrCodec is returned when a message cannot be encoded or decoded.
	ErrCodec = errors.New("could not encode/decode package")
)

// ErrMsgFor maps a protocol-level error to its wire representation.
func ErrMsgFor(err error) ClientErrMsg {
	switch {
	case errors.Is(err, ErrUnexpectedPkg):
		return ClientErrMsg{Code: CodeUnexpectedPkg, Msg: ErrUnexpectedPkg.Error()}
	case errors.Is(err, ErrUnknownCmd):
		return ClientErrMsg{Code: CodeUnknownCmd, Msg: ErrUnknownCmd.Error()}
	case errors.Is(err, ErrCodec):
		return ClientErrMsg{Code: CodeCodec, Msg: ErrCodec.Error()}
	default:
		return ClientErrMsg{Code: CodeIo, Msg: err.Error()}
	}
}
