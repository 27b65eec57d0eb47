// Package app contains the core application logic. It owns the logger, the
// tool registry and the loaded pipeline, and runs the pipeline DAG,
// decoupled from any specific entrypoint like a CLI.
package app
