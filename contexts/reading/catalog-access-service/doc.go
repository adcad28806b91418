// Package catalogaccessservice contains the Inkwell chapter access surface:
// the cached novel aggregate loader and the per-viewer chapter visibility
// classifier.
//
// The module keeps domain/application logic decoupled from runtime/platform
// concerns through ports and adapter composition.
package catalogaccessservice
