// system.go captures process state at error time.

package sentinel

import (
	"os"
	"runtime"
	"time"
)

// processStart approximates process start for uptime reporting.
var processStart = time.Now()

// CaptureSystemState snapshots process metrics. startTime is used to compute
// uptime.
func CaptureSystemState(startTime time.Time) *SystemState {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hostname, _ := os.Hostname() // empty hostname is acceptable

	uptimeMs := time.Since(startTime).Milliseconds()
	if uptimeMs < 0 {
		uptimeMs = 0
	}

	return &SystemState{
		MemoryBytes:    int64(memStats.Alloc),
		GoroutineCount: runtime.NumGoroutine(),
		UptimeMs:       uptimeMs,
		HostName:       hostname,
		PID:            os.Getpid(),
		GoVersion:      runtime.Version(),
	}
}
