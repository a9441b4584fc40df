// Package model provides the data structures shared between the pipeline
// package and its options. It defines the typed step, the type-erased step
// description handed to options, and the option contract itself.
package model
