package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/trezcool/smartlearn/core/identity"
)

// grant activates `plan` for the identity registered with `email`, without charging it.
func (cli *commandLine) grant(email, plan string) error {
	usr, err := cli.store.Grant(context.Background(), email, identity.Plan(strings.ToUpper(plan)))
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s is on the %s plan until %s\n", usr.Email, usr.CurrentPlan, usr.SubscriptionExpiry.Format("2006-01-02 15:04 MST"))
	return nil
}
