package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"voice-beyond/companion/internal/models"
)

func init() {
	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in (without credentials: the demo profile)",
		Args:  cobra.NoArgs,
		RunE:  runLogin,
	}
	login.Flags().StringP("username", "u", "", "Backend username")
	login.Flags().StringP("password", "p", "", "Backend password")

	register := &cobra.Command{
		Use:   "register",
		Short: "Create a backend account and sign in",
		Args:  cobra.NoArgs,
		RunE:  runRegister,
	}
	register.Flags().StringP("username", "u", "", "Username")
	register.Flags().StringP("email", "e", "", "Email address")
	register.Flags().StringP("password", "p", "", "Password")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored token",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}

	whoami := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in profile",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}

	RootCmd.AddCommand(login, register, logout, whoami)
}

func runLogin(cmd *cobra.Command, args []string) error {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")

	return withApp(cmd, nil, func(ctx context.Context, a *app) error {
		var (
			user *models.User
			err  error
		)
		if username == "" && password == "" {
			user, err = a.container.Users.MockLogin(ctx)
		} else {
			user, err = a.container.Users.Login(ctx, models.LoginRequest{Username: username, Password: password})
		}
		if err != nil {
			return err
		}
		printUser(cmd, user)
		return nil
	})
}

func runRegister(cmd *cobra.Command, args []string) error {
	username, _ := cmd.Flags().GetString("username")
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")

	return withApp(cmd, nil, func(ctx context.Context, a *app) error {
		user, err := a.container.Users.Register(ctx, models.RegisterRequest{Username: username, Email: email, Password: password})
		if err != nil {
			return err
		}
		printUser(cmd, user)
		return nil
	})
}

func runLogout(cmd *cobra.Command, args []string) error {
	return withApp(cmd, nil, func(ctx context.Context, a *app) error {
		if err := a.container.Users.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	})
}

func runWhoami(cmd *cobra.Command, args []string) error {
	return withApp(cmd, nil, func(ctx context.Context, a *app) error {
		user, err := a.container.Users.Current(ctx)
		if err != nil {
			return err
		}
		if user == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Not signed in. Characters are kept on the guest profile.")
			return nil
		}
		printUser(cmd, user)
		return nil
	})
}

func printUser(cmd *cobra.Command, u *models.User) {
	out := cmd.OutOrStdout()
	if u.Email != "" {
		fmt.Fprintf(out, "Signed in as %s <%s> (%s)\n", u.Name, u.Email, u.ID)
		return
	}
	fmt.Fprintf(out, "Signed in as %s (%s)\n", u.Name, u.ID)
}
