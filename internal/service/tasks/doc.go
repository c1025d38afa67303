// Package tasks implements the task definition lifecycle: saving simple and
// composed definitions, deleting them with their generated children,
// validating app registrations and launching executions under a concurrency
// limit.
package tasks
