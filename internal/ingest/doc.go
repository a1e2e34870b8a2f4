// Package ingest feeds JSON lines into an audit logger.
//
// Each input line is an object {"level": "...", "msg": "...", "fields": {...}}.
// Missing levels default to INFO. Malformed lines are counted and skipped;
// a faulted logger ends the run.
package ingest
