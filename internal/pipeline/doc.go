// Package pipeline orchestrates conversion jobs: staging the upload into a
// workspace, rendering it to PDF, rasterizing pages, and publishing the
// images under the serving directory.
package pipeline
