// Package api exposes Lumen Core over HTTP.
//
// Routes (all under /api/v1):
//
//	GET    /health                       liveness and version
//	GET    /devices                      list devices (filters: sku, capability, health)
//	POST   /devices                      register a device
//	GET    /devices/stats                registry statistics
//	GET    /devices/{id}                 fetch one device
//	PATCH  /devices/{id}                 partial update
//	DELETE /devices/{id}                 remove a device
//	GET    /devices/{id}/state           live state query (?source=cached for last known)
//	POST   /devices/{id}/command         dispatch and verify a command
//	GET    /devices/{id}/commands        command history, newest first
//	GET    /devices/{id}/transports      per-transport health
//	POST   /diagnostics/cloud-stability  cloud API drift check
//
// Authentication is a shared API key in the X-API-Key header, enforced
// only when a key is configured. Error responses are structured JSON
// with status, code, and message fields.
package api
