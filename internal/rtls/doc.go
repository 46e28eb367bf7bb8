// Package rtls owns the location-estimation engine of a zone.
//
// Responsibilities: bounded ranging histories per device pair, bounded
// position traces per device, and turning fresh ranging data into new
// position estimates through a pluggable PositionEstimator.
// Key types: Zone, DeviceRegistry, MeasurementGraph, Trace.
//
// Dependency rule: rtls never imports transport, storage or rendering
// packages. Collaborators attach through Observer and the injected logger.
//
// A Zone is not safe for concurrent use. Hosts that share one zone between
// goroutines wrap it in a SyncZone.
package rtls
