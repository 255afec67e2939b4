// Package message defines the command, query and event contracts exchanged
// over the registry bus, together with their schema validators.
//
// All argument, output and payload maps are string-to-string. Numbers and
// booleans travel as text and are parsed by the typed schema helpers.
//
// Validators are pure. The dispatchers ValidateCommand, ValidateQuery and
// ValidateEvent pick a schema by (target, name) for commands and queries and
// by (source, name) for events; unmatched combinations pass.
package message
