package adapters

import (
	"sync"

	"github.com/strongdm/sentinel-catcher/pkg/sentinel"
)

// Registration is what a framework Setup attached to one application.
type Registration struct {
	Catcher *sentinel.Catcher
	Adapter *Base

	// Value is framework-specific, e.g. the wrapped handler for net/http.
	Value any
}

var (
	registryMu sync.Mutex
	registry   = make(map[any]Registration)
)

// Register attaches reg to app unless app is already set up, in which case
// the existing registration is returned with first == false. app must be a
// comparable value, normally the router or mux pointer.
func Register(app any, build func() Registration) (reg Registration, first bool) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := registry[app]; ok {
		return existing, false
	}
	reg = build()
	registry[app] = reg
	return reg, true
}

// Lookup returns the Catcher attached to app by a framework Setup, or nil.
func Lookup(app any) *sentinel.Catcher {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registry[app].Catcher
}

// Unregister detaches app. It reports whether app was registered. The
// middleware already installed on app keeps running.
func Unregister(app any) bool {
	registryMu.Lock()
	defer registryMu.Unlock()

	_, ok := registry[app]
	delete(registry, app)
	return ok
}
