// Package shutdown runs registered hooks when the process is asked to stop.
//
// Hooks run in reverse registration order under one shared deadline, so
// the component started last is stopped first.
package shutdown
