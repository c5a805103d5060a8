package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/smartlearn/core"
	"github.com/trezcool/smartlearn/core/entitlement"
	"github.com/trezcool/smartlearn/core/identity"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf     *core.Config
	dir      identity.Repository
	store    *entitlement.Store
	validate *validator.Validate
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  seed - reset the directory to the sample identities")
	fmt.Fprintln(cli.out, "  list [-search TEXT] [-role ROLE] [-status STATUS] - list identities")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL -name NAME -role STUDENT|TEACHER - register an identity (password prompted)")
	fmt.Fprintln(cli.out, "  grant -email EMAIL -plan DAILY|WEEKLY|MONTHLY - activate a plan without payment")
	fmt.Fprintln(cli.out, "  sweep - expire the logged in identity's subscription if it is past due")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run database migrations (postgres backend only)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	listSearch := listCmd.String("search", "", "Part of the name or email.")
	listRole := listCmd.String("role", "", "STUDENT, TEACHER or ADMIN.")
	listStatus := listCmd.String("status", "", "ACTIVE, EXPIRED or NONE.")

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserEmail := addUserCmd.String("email", "", "The identity's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The identity's display name.")
	addUserRole := addUserCmd.String("role", string(identity.RoleStudent), "STUDENT or TEACHER.")

	grantCmd := flag.NewFlagSet("grant", flag.ExitOnError)
	grantEmail := grantCmd.String("email", "", "The identity's email.")
	grantPlan := grantCmd.String("plan", "", "DAILY, WEEKLY or MONTHLY.")

	switch args[1] {
	case "seed":
		return cli.seed()

	case "sweep":
		return cli.sweep()

	case "list":
		if err := listCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.list(identity.Filter{
			Search: *listSearch,
			Role:   identity.Role(*listRole),
			Status: identity.Status(*listStatus),
		})

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(identity.NewIdentity{
			Name:     *addUserName,
			Email:    *addUserEmail,
			Role:     *addUserRole,
			Password: string(pwd),
		})

	case "grant":
		if err := grantCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *grantEmail == "" || *grantPlan == "" {
			grantCmd.Usage()
			return errHelp
		}
		return cli.grant(*grantEmail, *grantPlan)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	default:
		cli.printUsage()
		return errHelp
	}
}
