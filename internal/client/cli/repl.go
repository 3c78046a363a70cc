package cli

import (
	"context"
	"fmt"
	"strings"
)

// Run reads commands until EOF or exit.
func (a *App) Run(ctx context.Context) error {
	a.printf("Product transparency client. Type 'help' for commands.\n")
	for {
		a.printf("pt [%s]> ", a.Status())
		line, err := a.reader.ReadString('\n')
		if line == "" && err != nil {
			a.printf("\n")
			return nil
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		arg := ""
		if len(parts) > 1 {
			arg = parts[1]
		}

		var errCmd error
		switch parts[0] {
		case "help":
			a.help()
		case "signup":
			errCmd = a.Signup(ctx)
		case "verify":
			errCmd = a.Verify(ctx)
		case "resend":
			errCmd = a.Resend(ctx)
		case "login":
			errCmd = a.Login(ctx)
		case "logout":
			errCmd = a.Logout(ctx)
		case "me":
			errCmd = a.Me(ctx)
		case "l", "list":
			errCmd = a.List(ctx, arg)
		case "stats":
			errCmd = a.Stats(ctx)
		case "new":
			errCmd = a.New(ctx)
		case "edit":
			errCmd = a.Edit(ctx, arg)
		case "export":
			errCmd = a.Export(ctx, arg)
		case "exit", "quit":
			a.printf("Bye!\n")
			return nil
		default:
			a.printf("Unknown command: %s\n", parts[0])
		}
		if errCmd != nil {
			a.printf("Error: %v\n", errCmd)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (a *App) help() {
	fmt.Fprintln(a.out, "Account: signup, verify, resend, login, logout, me")
	fmt.Fprintln(a.out, "Products: (l)ist [category], stats, new, edit <id>, export <id>")
	fmt.Fprintln(a.out, "Other: help, exit")
}
