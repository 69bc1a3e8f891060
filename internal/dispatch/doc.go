// Package dispatch is the command dispatch and state-verification core.
//
// Callers issue a logical command (a partial desired state) against a
// device. The dispatcher picks a transport ordering (LAN before cloud
// when the device is LAN-capable and the LAN path is not marked
// unreachable), then runs a bounded verification state machine per
// transport: send, settle delay, poll, compare within tolerance, one
// bounded retry. The first fully matching observation verifies the
// command; a transport that accepts but never matches escalates to the
// next transport with a fresh verification sequence.
//
// Outcomes fold deterministically: verified beats unverified beats
// failed. An unverified outcome means at least one transport accepted
// the command but the observed state never matched within tolerance; a
// failed outcome means every transport rejected the command or was
// unreachable at the send step.
//
// Transport health is tracked per (device, transport) pair and biases
// ordering only. Failures degrade a path and repeated failures mark it
// unreachable, but the mark decays; no path is permanently avoided
// within a process lifetime.
package dispatch
