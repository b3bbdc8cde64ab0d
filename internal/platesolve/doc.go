// Package platesolve identifies the sky coordinates of captured frames.
//
// The stage lazily loads the star pattern database on first use, extracts
// centroids from the first frame of a session, and runs the lost-in-space
// solver against them. Successful solves are stored on the queue item as a
// typed solution payload that the organizer writes into the library sidecar
// and the CLI renders in queue listings.
//
// Solving is best effort by default: sessions continue through the pipeline
// when no match is found. Setting solver.required routes unsolved sessions
// to review instead, and solver.enabled turns the stage into a pass-through.
package platesolve
