// Package sentinel captures errors and panics in a Go process and forwards
// them to a remote collection endpoint ("Sentinel") over HTTP.
//
// # Core Components
//
//   - Catcher: runs the capture pipeline (filter, enrich, build, deliver)
//   - Envelope: the filter-approved, enriched report sent over the wire
//   - Client: the Delivery Client, with timeout, bounded retry and circuit breaking
//   - hook: the process-wide handler chain for uncaught panics
//   - Sink: optional local mirrors of every envelope (stderr, cxdb, ...)
//   - adapters: net/http, chi and agent-runner integrations
//
// # Quick Start
//
//	c, err := sentinel.New(sentinel.Config{
//	    SentinelURL: "https://sentinel.example.com",
//	    ServiceName: "billing",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c.Initialize()
//	defer c.Shutdown(context.Background())
//
//	outcome, err := c.Report(ctx, err, sentinel.WithContext(map[string]any{"op": "charge"}))
//
// Panics reach the Catcher only through a guard:
//
//	go func() {
//	    defer hook.Recover()
//	    work()
//	}()
//
// Or bootstrap from MIRA_SENTINEL_URL / MIRA_SERVICE_NAME:
//
//	c, err := sentinel.AutoInitialize()
//
// # Design Principles
//
//   - Reporting never crashes the host: delivery failures are outcomes, not panics
//   - Misuse is observable: reporting outside the initialized state is an error
//   - Best effort only: no persistent queue, no ordering between reports
package sentinel

// Version is the SDK version sent in the User-Agent header.
const Version = "0.3.0"

// UserAgent identifies the SDK to the collection endpoint.
const UserAgent = "sentinel-catcher-go/" + Version
