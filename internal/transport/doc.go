// Package transport defines the closed transport abstraction for device
// command and query traffic.
//
// Two adapters satisfy the Transport interface: a local-network UDP
// adapter (package lan) and an authenticated HTTPS adapter (package
// cloud). Both expose the same Send/Query contract with divergent
// failure modes: LAN "accepted" means only that the datagram left the
// socket, while Cloud "accepted" means the remote API returned success.
//
// Adapters perform network I/O only. They never retry, never sleep, and
// never touch shared state; retry and fallback policy lives entirely in
// the dispatch package.
package transport
