// Package pipeline drives the preprocess and split stages.
//
// Preprocess fans records out across workers: each record is loaded,
// conditioned, segmented, windowed and normalized independently, then
// persisted as a record artifact. Per-record failures are classified and
// recorded; they never abort the batch. Split reads the successful record
// artifacts, allocates whole records with one seeded random source, validates
// the result, materializes the split artifacts and reads them back before
// reporting success. Both stages hold the output lock and log to the catalog.
package pipeline
