// Package comms owns typed, bidirectional, channel-based connections over
// framed byte streams.
//
// Ownership boundary:
// - outbound connection establishment and the listener registry
// - one I/O loop per connection bridging channels and the framed transport
// - the serialization boundary between application values and frame payloads
//
// Subpackages:
// - transport: raw stream/listener/connector capability contracts
// - frame: length-prefixed reassembly and encoding
// - protocol: the application message schema carried in payloads
//
// The package has no process-wide mutable state beyond each Client's
// listener registry, which sits behind one mutex held only for map access.
package comms
