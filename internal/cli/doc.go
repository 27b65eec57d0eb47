// Package cli parses command-line arguments into the application's
// configuration and carries process exit codes for usage errors.
package cli
