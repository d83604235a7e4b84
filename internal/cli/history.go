package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/kilnhq/kilnd/internal/history"
	"github.com/kilnhq/kilnd/internal/paths"
)

// Represents the 'kilnd history' command.
type HistoryCmd struct {
	Limit int `short:"n" default:"20" help:"Maximum number of records to show."`
}

// Executes the history command, printing recent bakes newest first.
func (c *HistoryCmd) Run(ctx context.Context) error {
	ledger, err := history.Open(paths.Ledger())
	if err != nil {
		return err
	}
	defer ledger.Close()

	records, err := ledger.Recent(c.Limit)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("no bakes recorded")
		return nil
	}

	for _, rec := range records {
		status := "ok"
		if rec.Error != "" {
			status = "failed: " + rec.Error
		}
		fmt.Printf("%s  %-20s  %-14s  %8s  %s\n",
			rec.BakedAt.Local().Format(time.DateTime),
			rec.Name,
			rec.Platforms,
			rec.Duration.Truncate(time.Millisecond),
			status,
		)
	}

	return nil
}
