// Package hcl provides the HCL implementation of the pipeline loading and
// argument conversion interfaces defined in the `config` package. It is
// responsible for file discovery, parsing, HCL-to-model translation, and
// CTY-to-Go data binding.
package hcl
