package main

import (
	"context"
	"errors"
	"fmt"

	authsession "github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/navigation"
	"github.com/MrEthical07/authsession/provider/local"
	"github.com/urfave/cli/v2"
)

var errSignInFailed = errors.New("sign-in failed")

func signInCommand() *cli.Command {
	return &cli.Command{
		Name:  "signin",
		Usage: "Sign in with email and password, or with --one-tap",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "account email; prompted when omitted"},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "account password; prompted when omitted", EnvVars: []string{"AUTHSESSION_PASSWORD"}},
			&cli.BoolFlag{Name: "one-tap", Usage: "continue with a saved account instead of a password"},
		},
		Action: runSignIn,
	}
}

func runSignIn(c *cli.Context) error {
	e := getEnv(c)
	client, cleanup, err := e.newClient()
	if err != nil {
		return err
	}
	defer cleanup()

	term := newTerminal(e.out)
	driver := navigation.NewDriver(navigation.NewTrigger(), term, term, e.logger)
	driverDone := make(chan error, 1)
	driverSub := client.Observe()
	go func() { driverDone <- driver.Run(c.Context, driverSub) }()

	sub := client.Observe()
	defer sub.Close()

	restored, err := client.Restore(c.Context)
	if err != nil {
		e.logger.Warn("restoring session", "error", err)
	}

	if !restored {
		if c.Bool("one-tap") {
			client.SubmitFederated()
		} else {
			creds, err := e.credentials(c)
			if err != nil {
				return err
			}
			client.Submit(creds)
		}
	}

	final, err := awaitOutcome(c.Context, sub, term)
	client.Close()
	if derr := <-driverDone; derr != nil && !errors.Is(derr, context.Canceled) {
		e.logger.Warn("navigation stopped", "error", derr)
	}
	if err != nil {
		return err
	}

	if final.Kind != authsession.StateAuthenticated {
		return errSignInFailed
	}
	if final.Method == authsession.MethodRestored {
		fmt.Fprintf(e.out, "Already signed in as %s.\n", final.UserID)
	} else {
		fmt.Fprintf(e.out, "Signed in as %s.\n", final.UserID)
	}
	return nil
}

func (e *env) credentials(c *cli.Context) (authsession.Credentials, error) {
	creds := authsession.Credentials{
		Identifier: c.String("email"),
		Secret:     c.String("password"),
	}
	var err error
	if !c.IsSet("email") {
		if creds.Identifier, err = e.readLine("Email: "); err != nil {
			return creds, err
		}
	}
	if !c.IsSet("password") {
		if creds.Secret, err = e.readSecret("Password: "); err != nil {
			return creds, err
		}
	}
	return creds, nil
}

// awaitOutcome follows sub until the attempt settles: signed in, failed, or
// refused with a message.
func awaitOutcome(ctx context.Context, sub *authsession.Subscription, term *terminal) (authsession.AuthState, error) {
	for {
		state, err := sub.Next(ctx)
		if err != nil {
			return authsession.AuthState{}, err
		}
		switch state.Kind {
		case authsession.StateLoading:
			term.progress(state)
		case authsession.StateAuthenticated, authsession.StateFailed:
			return state, nil
		case authsession.StateIdle:
			if state.HasMessage() {
				return state, nil
			}
		}
	}
}

func signUpCommand() *cli.Command {
	return &cli.Command{
		Name:  "signup",
		Usage: "Follow the sign-up link from the sign-in screen",
		Action: func(c *cli.Context) error {
			e := getEnv(c)
			driver := navigation.NewDriver(nil, newTerminal(e.out), nil, e.logger)
			return driver.Navigate(c.Context, navigation.SignUp)
		},
	}
}

func signOutCommand() *cli.Command {
	return &cli.Command{
		Name:  "signout",
		Usage: "Forget the persisted session",
		Action: func(c *cli.Context) error {
			e := getEnv(c)
			client, cleanup, err := e.newClient()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := client.SignOut(c.Context); err != nil {
				return fmt.Errorf("sign out: %w", err)
			}
			fmt.Fprintln(e.out, "Signed out.")
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show whether a persisted session exists",
		Action: func(c *cli.Context) error {
			e := getEnv(c)
			client, cleanup, err := e.newClient()
			if err != nil {
				return err
			}
			defer cleanup()

			restored, err := client.Restore(c.Context)
			if err != nil {
				return fmt.Errorf("load session: %w", err)
			}
			if !restored {
				fmt.Fprintln(e.out, "Signed out.")
				return nil
			}
			fmt.Fprintf(e.out, "Signed in as %s.\n", client.State().UserID)
			return nil
		},
	}
}

func hashPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash-password",
		Usage:     "Print an argon2id hash for a local provider user",
		ArgsUsage: "[password]",
		Action: func(c *cli.Context) error {
			e := getEnv(c)
			password := c.Args().First()
			if password == "" {
				var err error
				if password, err = e.readLine("Password: "); err != nil {
					return err
				}
			}
			hash, err := local.HashPassword(e.cfg.Provider.Local.Hash, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, hash)
			return nil
		},
	}
}
