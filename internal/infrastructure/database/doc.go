// Package database provides SQLite connectivity for the DeepSleep agent.
//
// The agent stores no history. The database exists so that MQTT
// publishes made while the broker is unreachable survive a reboot of
// the device (see mqtt.SQLiteStore).
//
// This package manages:
//   - Database connection with WAL mode
//   - Forward-only schema migrations from an fs.FS
//   - Lifecycle and health checks
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
