// Package database provides SQLite storage for the Genius gateway.
//
// This package manages:
//   - The connection to the gateway's SQLite file
//   - Versioned schema migrations (see the migrations package)
//   - A namespaced key/value store for small persistent counters
//
// The gateway keeps its registries in memory and writes through to SQLite so
// that devices, alarm lines and the transmission sequence number survive a
// restart. Writes are rare and tiny, so the pool holds one connection.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
//	kv := database.NewKVStore(db)
//	seq, err := kv.LoadUint8(ctx, "gg-alarmlines", "pkt_seq_num", 0)
package database
