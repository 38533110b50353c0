// Package database opens the node's SQLite file and applies its schema.
//
// The store is local and small: one writer (the control loop), WAL mode so
// diagnostics can read while it writes, and a busy timeout for the rare
// lock wait. Migrations are plain .up.sql/.down.sql pairs read from any
// fs.FS; the binary embeds them from the migrations package.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns are nullable or carry a default.
package database
