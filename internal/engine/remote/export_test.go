package remote

import "time"

func SetDiagnosticsTimeout(d time.Duration) (restore func()) {
	prev := diagnosticsTimeout
	diagnosticsTimeout = d
	return func() { diagnosticsTimeout = prev }
}
