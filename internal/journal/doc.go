// Package journal keeps a local SQLite history of what the node did.
//
// Two tables are written: readings (every published sample) and
// actuator_events (every LED write, with its source). The control loop
// prunes both on a retention window so the file stays bounded on an SD
// card. The schema lives in the top-level migrations package.
package journal
