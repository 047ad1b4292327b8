// Package analysis implements the analysis_metric module.
//
// The module requires storage. On start it creates one persistence worker
// per entity, resolving each worker's DAO from the storage module, and
// binds the worker router as analysis_metric.router. Receivers route
// decoded records to the worker ids declared here.
package analysis
