// Package dag is the execution layer of a pipeline. It takes the
// format-agnostic config.Model, builds a directed acyclic graph of step
// nodes from explicit `depends_on` lists and implicit
// `step.<tool>.<name>.<output>` references, and executes the nodes
// concurrently on a fixed pool of workers as their dependencies complete.
package dag
