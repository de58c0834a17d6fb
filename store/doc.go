// Package store provides in-memory implementations of the engine's external
// store interfaces. They are the defaults wired by the top-level constructor
// and are suitable for development, testing and single-process deployments;
// the sqlite subpackage offers a durable alternative.
package store
