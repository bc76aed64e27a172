// Package realtimefmri is a real-time fMRI preprocessing service. It turns
// raw scanner volumes, delivered as NIfTI files during an acquisition, into
// live derived signals (masked activity, running z-scores, model
// predictions) published to display services while the subject is still in
// the scanner.
//
// # Architecture
//
// One run is one continuous execution of a validated pipeline against a
// live frame stream:
//
//	┌─────────────┐    ┌─────────────────┐    ┌──────────────┐
//	│  Ingestion   │    │ Frame Execution │    │   Display    │
//	│  (dirwatch,  │───►│     Engine      │───►│  Dispatcher  │
//	│   NATS)      │    │ (sequential)    │    │ (NATS, WS)   │
//	└─────────────┘    └─────────────────┘    └──────────────┘
//
// Frames are indexed monotonically from zero and processed strictly in
// order; steps that own cross-frame state (running statistics) rely on
// that serialization. Display publishing is fire-and-forget through a
// bounded queue, so a stalled viewer never creates backpressure into the
// frame loop.
//
// # Packages
//
// Pipeline definition:
//   - pipeline: document parsing and validation into a slot-resolved graph
//   - step: the step capability, the closed type registry, parameter decode
//   - stepregistry: registration of the built-in step types
//
// Processing steps:
//   - processor/motioncorrect, processor/mask, processor/runningstats,
//     processor/zscore, processor/mean, processor/ratio,
//     processor/constant, processor/predict
//   - output/publish, output/record: sink steps
//
// Runtime:
//   - engine: sequential frame execution and run registration
//   - ingest: volume sources (spool directory, NATS notifications)
//   - display: publication dispatcher and transports
//   - volume, stats: NIfTI codec and Welford accumulator
//
// Infrastructure:
//   - config: application configuration
//   - natsclient: NATS connection management
//   - metric: Prometheus metrics
//   - errors: classified error handling
//
// # Error containment
//
// Only configuration errors may prevent a run from starting. Ingestion
// errors drop the affected volume, step errors fail the affected frame,
// and sink delivery errors drop the affected publication; the run always
// continues.
package realtimefmri
