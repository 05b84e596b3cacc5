// Package registry tracks conversion jobs. Active jobs live in an in-memory
// table guarded by a mutex; terminal jobs are mirrored to a sqlite history
// database so results survive restarts.
package registry
