package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"community-access-client/internal/services"

	"github.com/spf13/cobra"
)

var (
	loginCode    string
	registerIn   services.RegisterInput
	registerCode string
)

var loginCmd = &cobra.Command{
	Use:   "login [identifier] [password]",
	Short: "Authenticate against the community backend",
	Long: `Authenticate with a phone number or email plus password, or with a
shared invitation code via --code. The session is persisted locally until
logout.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}

		if loginCode != "" {
			session, err := a.sessions.LoginWithCode(ctx, loginCode)
			if err != nil {
				return err
			}
			fmt.Printf("Logged in as guest %s (%s, %s %s)\n",
				session.DisplayName(), session.Role, session.Project, session.Unit)
			return nil
		}

		if len(args) != 2 {
			return fmt.Errorf("usage: login <identifier> <password> (or --code)")
		}
		session, err := a.sessions.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Logged in as %s (%s)\n", session.DisplayName(), session.Role)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the local session",
	Long:  `Remove the persisted session. Local-only; works offline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		if err := a.sessions.Logout(); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		session := a.sessions.Current()
		if session == nil {
			fmt.Println("Not logged in")
			return nil
		}
		fmt.Printf("%s <%s>\nRole:    %s\nProject: %s\nUnit:    %s\nDevice:  %s\n",
			session.DisplayName(), session.Email, session.Role,
			session.Project, session.Unit, a.sessions.DeviceID())
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new account",
	Long: `Register a new owner account, or join an existing unit with an
invitation code via --code. The account is activated after backend approval.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}

		if registerCode != "" {
			err = a.sessions.RegisterWithCode(ctx, registerCode, registerIn)
		} else {
			err = a.sessions.RegisterOwner(ctx, registerIn)
		}
		if err != nil {
			return err
		}
		fmt.Println("Registration submitted")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginCode, "code", "", "Log in with a shared invitation code")

	registerCmd.Flags().StringVar(&registerIn.FirstName, "first-name", "", "First name")
	registerCmd.Flags().StringVar(&registerIn.LastName, "last-name", "", "Last name")
	registerCmd.Flags().StringVar(&registerIn.Email, "email", "", "Email address")
	registerCmd.Flags().StringVar(&registerIn.Password, "password", "", "Password")
	registerCmd.Flags().StringVar(&registerIn.Phone, "phone", "", "Phone number")
	registerCmd.Flags().StringVar(&registerIn.Project, "project", "", "Community project name")
	registerCmd.Flags().StringVar(&registerIn.Unit, "unit", "", "Unit identifier")
	registerCmd.Flags().StringVar(&registerCode, "code", "", "Invitation code to register with")

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, registerCmd)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
