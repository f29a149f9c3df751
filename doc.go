// Package xmlrpc implements a XML-RPC HTTP server handler.
//
// A request flows through three stages. The request guard rejects bodies
// larger than the configured limit (8 MiB by default) before parsing them.
// The codec decodes the methodCall document into a method name and its
// params. The dispatcher invokes the matching method, and the codec encodes
// its result, or the fault it reported, as a methodResponse document.
//
// Methods report protocol level failures by returning a coder.Fault, either
// as result or as error. Other errors are not turned into faults by the
// dispatch layer; the ErrorHandler of the Server decides what the client
// sees (see DefaultErrorHandler and FaultOnError).
//
// Two dispatch shapes are provided. Server dispatches by method name to the
// registered methods (see Register and RegisterReceiver). View serves a single
// endpoint and ignores the method name.
//
// Codec behavior is controlled by coder.Options: nil support, the charset of
// responses and whether dateTime.iso8601 values decode to time.Time or to
// coder.DateTime. Document type declarations are rejected, so external
// entities are never resolved.
//
// The XML-RPC specification can be found at http://xmlrpc.com/spec.md.
package xmlrpc
