// Package cloud implements the authenticated HTTPS transport adapter
// for the vendor openapi.
//
// Every request carries the account API key. "Accepted" means the API
// returned a success code; the API's reported device state can lag the
// real device by an interval outside the adapter's control, which the
// dispatcher absorbs with a longer settle delay.
//
// Rejections are classified into structured reasons from HTTP status
// and body-level codes, never by inspecting message text. Server-side
// (5xx) failures surface as unreachable so the dispatcher can fall
// back or retry later.
package cloud
