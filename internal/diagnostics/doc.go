// Package diagnostics contains operational checks that verify upstream
// behaviour rather than local state.
//
// The stability checker exists because the cloud API has been observed
// returning different result sets for identical back-to-back requests.
// It fetches the same endpoint N times with a short delay and compares
// each fetch against the first as a set of canonical JSON documents,
// reporting the exact symmetric difference:
//
//	checker := diagnostics.NewChecker(cloudAdapter, 3, time.Second)
//	report, err := checker.CheckDevices(ctx)
//	if err == nil && !report.Stable {
//	    // upstream returned drifting results
//	}
//
// Comparisons ignore list order and object key order; only structural
// differences between items count as drift.
package diagnostics
