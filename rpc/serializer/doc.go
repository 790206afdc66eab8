// Package serializer encodes the lock protocol messages (common.Message) for the transport layer.
//
// A message consists of its type and the fields used by that type:
//
//   - ClientID: the client identity sent with the hello that binds a connection, and the
//     client looked up by a client address request
//   - Key: the lock id, or the shell pattern of a find request
//   - Value: the signal name of the signal operations, or the address returned for a client
//   - Timeout: the grace period of a release-all request in milliseconds (0 = server default)
//   - Reentrant: whether an acquire may succeed for a lock the client already holds
//   - Ok, Found: the boolean result and, for signal and address requests, whether the target exists
//   - Items: the (lock id, acquisition time) pairs of a find response
//   - Err: the error of a failed request as "<code>: <message>", see common.ParseError
//
// Three formats are available and selected with the --serializer flag. Client and server
// must use the same one.
//
//   - binary (default): one type byte, a 16 bit flag field and only the present fields.
//     Strings are length prefixed, booleans live in the flags, find items are a counted
//     list of (id, unix nanoseconds). Truncated input and trailing bytes are rejected with an error.
//
//   - json: readable payloads, useful for debugging with tools like socat.
//
//   - gob: Go's self describing format. It is the slowest and largest of the three.
//
// All serializers are stateless and safe for concurrent use:
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.Serialize(*common.NewAcquireRequest("jobs/42", false))
//	...
//	var resp common.Message
//	err = s.Deserialize(data, &resp)
package serializer
