// Package settlementservice contains the Inkwell chapter settlement engine:
// atomic coin purchases of chapters, the owner/platform revenue split, and
// the bulk unlock orchestrator.
//
// The module keeps domain/application logic decoupled from runtime/platform
// concerns through ports and adapter composition.
package settlementservice
