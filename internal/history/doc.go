// Package history persists bake records in a local SQLite ledger.
//
// Every bake, successful or failed, appends one record with the recipe
// name, output location, target platforms, duration, and the error
// message when the bake failed. Records are queried newest first for the
// history command and the daemon's history endpoint.
//
// Example usage:
//
//	ledger, err := history.Open(paths.Ledger())
//	if err != nil {
//	    return err
//	}
//	defer ledger.Close()
//
//	_, err = ledger.Append(history.Record{
//	    Name:    "backup-bot",
//	    Output:  "dist",
//	    BakedAt: time.Now(),
//	})
package history
