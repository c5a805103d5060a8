package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/trezcool/smartlearn/core/identity"
)

var nowFunc = time.Now // mockable

// seed replaces the whole Directory with the sample identities.
func (cli *commandLine) seed() error {
	users := identity.Seed(nowFunc(), cli.conf.AdminEmail)
	if err := cli.dir.Reset(context.Background(), users); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "directory reset with %d identities\n", len(users))
	return nil
}

func (cli *commandLine) sweep() error {
	return cli.store.SweepExpiry(context.Background())
}

func (cli *commandLine) list(filter identity.Filter) error {
	users, err := cli.store.Identities(context.Background(), filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tROLE\tSTATUS\tPLAN\tEXPIRY")
	for _, usr := range users {
		expiry := "-"
		if usr.SubscriptionExpiry != nil {
			expiry = usr.SubscriptionExpiry.Format(time.RFC3339)
		}
		plan := string(usr.CurrentPlan)
		if plan == "" {
			plan = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", usr.ID, usr.Email, usr.Role, usr.SubscriptionStatus, plan, expiry)
	}
	return w.Flush()
}
