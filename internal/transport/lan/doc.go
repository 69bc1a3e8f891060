// Package lan implements the local-network UDP transport adapter.
//
// Commands are single JSON datagrams sent to the device's control port
// (4003). There is no transport-level acknowledgment: a successful Send
// means only that the datagrams were emitted. State queries use the
// devStatus command; devices reply to UDP port 4002, which the adapter
// listens on with a shared socket, routing replies to waiting queries
// by source IP.
//
// Scenes cannot be set over this protocol; a command asserting a scene
// is rejected with an unsupported-capability reason.
package lan
