// Package protocol owns the modeller wire contract.
//
// Every message starts with a little-endian int32 signal code. Some codes
// carry trailing fields:
//
//	string   uint32 little-endian byte length N, then N bytes of UTF-8
//	progress IEEE-754 float32, little-endian
//
// Requests flow from the bridge to the modeller peer; signals flow back.
// The package only encodes and decodes; it never owns a connection. Decoding
// reads through the [Reader] interface so the same code works on a channel
// connection and on an in-memory buffer.
//
// Ownership boundary:
//   - signal codes and logbook levels
//   - request encoding (bridge side) and decoding (peer side)
//   - signal decoding (bridge side) and encoding (peer side)
//   - size limits and malformed-input detection
package protocol
