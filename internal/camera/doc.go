// Package camera models capture settings for the Raspberry Pi HQ camera:
// the tuning ranges accepted by libcamera apps, JSON encoding for queue
// storage, and named presets persisted to a YAML file.
package camera
