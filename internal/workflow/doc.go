// Package workflow advances queue sessions through the configured processing
// stages.
//
// The Manager polls the queue, reclaims stale work via heartbeats, and feeds
// sessions into registered stage handlers (capturer, converter, solver,
// organizer) while capturing progress and failure metadata. It also aggregates
// queue stats and calls stage health checks for the status surfaces.
//
// The workflow runs two independent lanes: foreground (capture) and background
// (DNG conversion, plate solving, library filing). Each lane polls for
// sessions matching its statuses and processes them independently, so the next
// target can be captured while the previous one converts and solves. The
// foreground lane additionally pauses while no camera is attached; the
// daemon's camera monitors flip that gate as hardware comes and goes.
//
// Add new lifecycle stages by extending StageSet, updating the queue status
// enums, and teaching the manager how to transition sessions; this package is
// the authoritative home for that coordination logic.
package workflow
