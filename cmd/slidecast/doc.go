// Command slidecast runs the presentation conversion service and its
// companion CLI: serve, one-shot convert, job history, health, and config
// utilities.
package main
