// Package errors implements classified error handling for the realtime
// fMRI pipeline.
//
// Four kinds map onto the containment policy of the run:
//
//   - KindConfig: fatal to run start, detected before any frame executes
//   - KindIngestion: the offending volume is dropped, the run continues
//   - KindStepExecution: the offending frame is failed, the run continues
//   - KindSinkDelivery: the publication is discarded, the run continues
//
// Use the Wrap* helpers to attach component and operation context in the
// form "component.method: action failed: <cause>".
package errors
