// Package datagen holds the entity model shared by the dataset generation
// pipeline: the four entity kinds, their record types, and the sentinel
// errors surfaced by every stage.
package datagen

// Version is reported in logs and trace resources.
const Version = "0.3.0"
