// Package component defines the lifecycle interface shared by the daemon's
// long-running parts and a registry that starts them in order and stops
// them in reverse.
//
// # Interfaces
//
//   - Component: Start/Stop/Health lifecycle
//   - Describable: startup summary descriptions
package component
