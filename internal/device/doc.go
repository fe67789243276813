// Package device provides the device registry of the Genius gateway.
//
// A device is a Genius Plus X smoke detector paired with its FM Basis X
// radio module. The smoke detector serial number is the registry key.
// Each device carries an ordered alarm history in which at most one record
// (the most recent) is active.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────┐
//	│                      Device Registry                       │
//	│                                                            │
//	│  ┌──────────────────┐          ┌──────────────────┐        │
//	│  │     Registry     │ ───────▶ │    Repository    │        │
//	│  │  (registry.go)   │  write   │ (repository.go)  │        │
//	│  │                  │ through  │                  │        │
//	│  │ • alarm lifecycle│          │ • devices table  │        │
//	│  │ • change origins │          │ • device_alarms  │        │
//	│  │ • MQTT pending   │          └──────────────────┘        │
//	│  └──────────────────┘                                      │
//	└────────────────────────────────────────────────────────────┘
//
// The RF reception pipeline calls SetAlarm/ResetAlarm; the MQTT publisher
// drains PendingProjections and acknowledges with MarkPublished. Every
// change notifies registered ChangeHandlers with an origin tag so
// subscribers can tell packet-driven changes from administrative ones.
//
// # Usage
//
//	reg := device.NewRegistry(device.NewSQLiteRepository(db.DB))
//	reg.SetLogger(log)
//	if err := reg.Load(ctx); err != nil {
//	    return err
//	}
//	reg.OnChange(func(origin string) { ... })
//	reg.SetAlarm(sn)
package device
