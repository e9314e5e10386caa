// Package wlshim maps a retained-mode windowing model onto a Wayland
// compositor.
//
// The engine owns one Wayland surface per visible window and keeps it
// reconciled with that window's role, geometry, and state. Compositor
// size and state proposals arrive asynchronously as configure events;
// the engine tracks the latest proposal per surface, acknowledges it
// at a safe point, and admits pixel buffers only when they match the
// last acknowledged configuration. Presenting a mismatched buffer is
// a protocol violation that kills the whole connection, so the commit
// gate is the load-bearing piece of the package.
//
// A Shim is created with New and runs a dedicated reactor goroutine
// that dispatches incoming events. Host windowing code reports window
// changes through UpdateWindow, DestroyWindow, and NoteFocus; painter
// code acquires buffers from a BufferPool and submits them with
// CommitBuffer from any goroutine.
package wlshim
