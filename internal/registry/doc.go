// Package registry provides the central "glue" for the tool system.
//
// The Registry maps the tool names used in pipeline files (for example
// "fill_depressions") to the compiled Go handler that implements the tool,
// the factory for its input struct, and the outputs it publishes to later
// steps.
//
// During application startup, the registry is populated by every module and
// then validated, so a handler whose signature does not match its declared
// input is caught before any pipeline runs.
package registry
