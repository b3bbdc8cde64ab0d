// Package daemon coordinates the long-running AstroPitography process and
// system integration points.
//
// It wires configuration, queue storage, the workflow manager, and the camera
// monitors into a single lifecycle with flock-based locking to prevent
// multiple instances. The daemon exposes queue maintenance helpers, enqueues
// capture and video sessions, emits dependency health summaries, and owns
// notifications triggered by daemon and camera events. An optional HTTP API
// serves read-only status, queue, and preview endpoints.
//
// Keep orchestration logic here: individual workflow stages should live in
// their respective packages while the daemon focuses on startup, shutdown, and
// high level coordination.
package daemon
