package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/trezcool/smartlearn/core/identity"
)

var newIDFunc = uuid.NewString // mockable

// addUser registers a Student or Teacher in the Directory, without logging it in.
func (cli *commandLine) addUser(ni identity.NewIdentity) error {
	if err := ni.Validate(cli.validate); err != nil {
		return err
	}
	if ni.Email == cli.conf.AdminEmail {
		return identity.ErrEmailExists
	}

	usr, err := cli.dir.Create(context.Background(), identity.New(newIDFunc(), ni.Email, ni.Name, identity.Role(ni.Role)))
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s registered as %s (%s)\n", usr.Email, usr.Role, usr.ID)
	return nil
}
