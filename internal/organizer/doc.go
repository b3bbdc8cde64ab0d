// Package organizer files completed sessions into the image library.
//
// Session artifacts move from staging into a dated library layout,
// library_dir/YYYY/MM/DD/<slug>/, together with a session.json manifest
// recording the capture settings, any plate-solve solution, and BLAKE2b
// checksums of every file, plus a PNG thumbnail of the first frame for
// quick browsing. Slug collisions within one day get -2, -3 suffixes so
// repeated sessions of the same target keep distinct homes.
//
// Progress updates and error wrapping follow the same conventions as other
// stages so the workflow manager can react uniformly.
package organizer
