// Package model provides the data structures shared between the pipeline
// package and its instrumentation options. It defines the per-stage metadata
// and the hook interface pipeline options implement.
package model
