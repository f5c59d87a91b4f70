// Package storage persists the picker state between runs.
//
// It currently supports:
//   - Atomic JSON state file (canonical + legacy document shapes)
//   - Optional SQLite database (build tag "sqlite")
package storage
