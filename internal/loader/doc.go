// Package loader drives one load cycle: it takes a decoded catalog snapshot and
// pushes it into the module cache in four ordered phases.
//
//	bootstrap → modules → vendors → reload
//
// bootstrap writes the yang-catalog self-description record on its own so the
// catalog is discoverable before the bulk write lands. modules writes every
// module record in one batch. vendors accumulates implementation associations
// in memory, and reload publishes them as a full replacement of the vendor index.
//
// A failing phase stops the cycle and is reported as a *PhaseError carrying the
// number of records written before the failure. Only one loader may drive a
// cycle against a backend at a time; AcquireLock provides that guarantee across
// processes on the same host.
package loader
