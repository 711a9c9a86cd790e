// Package killfeed provides parsing and monitoring of Star Citizen Game.log
// combat events.
//
// This package allows you to:
//   - Parse Game.log lines into structured kill, death and vehicle events
//   - Follow the live log across game restarts and log rotation
//   - Replay or filter the backups in logbackups/
//
// # Basic Usage
//
// To follow the live log:
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//
//	events, errs, err := killfeed.Watch(ctx, killfeed.WithPlayer("MyHandle"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for {
//	    select {
//	    case ev, ok := <-events:
//	        if !ok {
//	            return
//	        }
//	        switch ev.Type {
//	        case killfeed.EventKill:
//	            fmt.Printf("%s killed %s\n", ev.Killer, ev.Victim)
//	        case killfeed.EventDeath, killfeed.EventSuicide:
//	            fmt.Printf("%s died\n", ev.Victim)
//	        }
//	    case err, ok := <-errs:
//	        if !ok {
//	            return
//	        }
//	        log.Printf("error: %v", err)
//	    }
//	}
//
// To parse a single log line:
//
//	if ev, ok := killfeed.ParseLine(line); ok {
//	    // process ev
//	}
//
// Events can be narrowed with a where expression evaluated per event:
//
//	killfeed.ParseDir(ctx, "", killfeed.WithParseWhere(`type == "kill" && victim_ship != ""`))
//
// # Log Location
//
// The log path is taken from WithLogPath, then the
// KILLFEED_SETTINGS_GAME_LOG_PATH environment variable, then the standard
// Windows install locations (LIVE, PTU and EPTU).
//
// # Disclaimer
//
// This is an unofficial tool and is not affiliated with Cloud Imperium Games.
package killfeed
