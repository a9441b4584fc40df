// Package pipeline provides a pipeline for processing data.
//
// The pipeline package offers a convenient way to process data using a series of stages. Each stage
// performs a specific operation on the data and passes it to the next stage through a channel. This
// allows for a modular and flexible approach to data processing, and lets independent stages run
// concurrently.
//
// The pipeline stops on the first encountered error: every step forwards its failure to a dedicated
// error channel, Run cancels the remaining steps and returns the first reported error once every
// step has stopped. Cancelling the context passed to New stops all running steps.
//
// Cross-cutting behaviour is attached through pipeline options (see the measure and drawer
// packages): options observe steps through prepare and output hooks without the steps knowing
// about them.
package pipeline
