// Package diag defines the diagnostic model shared by the backend phases.
//
// # Tiers
//
// Recoverable findings (a circular value type, an exported generic function)
// are Diagnostic records appended to a Bag through a Reporter. Phases keep
// running after reporting so a single build surfaces as many problems as
// possible; the driver stops before lowering when the Bag has errors.
//
// Internal-consistency violations (an unregistered generic identity, a task
// without a declaration, an instruction reading a variable that was never
// bound) are not diagnostics. They panic with *InternalError through
// Internalf and are turned back into an error by RecoverInternal at the driver
// boundary. Such a build produces no module.
//
// # Emitting diagnostics
//
// Use ReportError/ReportWarning to get a ReportBuilder, chain WithNote, then
// Emit. BagReporter collects into a Bag which supports sorting and dedup.
//
// Package diag does no formatting or IO; rendering lives in internal/diagfmt.
package diag
