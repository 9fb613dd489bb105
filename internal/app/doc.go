// Package app wires the lyrics acquisition pipeline's core components
// (cache, mirror database, track store, resolver, scheduler, watcher)
// together and exposes the entry points the cmd package's cobra commands
// call into.
package app
