// Package ir provides the manifest data model shared by the runtime registry
// and the build-time forge pipeline.
//
// All other internal packages import ir; ir imports nothing internal. This
// keeps the manifest model the foundational layer with no circular
// dependencies.
//
// Key constraints:
//   - NO float types in hashed structures - settings are strings
//   - Canonical JSON (RFC 8785) is the only input to InputHash
//   - Artifact ordering is alphabetical by id unless noted otherwise
package ir
