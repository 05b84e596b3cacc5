// Package server exposes the HTTP API: presentation uploads, job inspection
// and deletion, health probing, static image serving, and a websocket feed
// of job updates.
package server
