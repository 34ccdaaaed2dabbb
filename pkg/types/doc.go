// Package types defines the provider kinds, persisted account records,
// storage and vault interfaces, configuration, and standard error types
// shared by the cosmosx registry, resource tree, and CLI.
package types
