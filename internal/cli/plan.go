package cli

import (
	"context"
	"fmt"

	"github.com/kilnhq/kilnd/internal/build"
	"github.com/kilnhq/kilnd/internal/manifest"
)

// Represents the 'kilnd plan' command.
type PlanCmd struct {
	File string `short:"f" default:"kiln.toml" type:"existingfile" help:"Recipe file to plan."`
}

// Executes the plan command.
//
// Prints the resolved provisioning plan in execution order without running
// anything, so the commands a bake would execute can be audited up front.
func (c *PlanCmd) Run(ctx context.Context) error {
	rec, err := manifest.Load(c.File)
	if err != nil {
		return err
	}

	if !rec.Provision.Enabled() {
		fmt.Println("no provisioning configured")
		return nil
	}

	for i, step := range build.Plan(rec.Provision) {
		fmt.Printf("%2d  %-7s  %-28s  %s\n", i+1, step.Class, step.Description, step.Command)
	}

	return nil
}
