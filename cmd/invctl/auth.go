package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hitoshi/invman/internal/session"
)

// NewRegisterCmd はregisterサブコマンドを生成する。
func NewRegisterCmd() *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := promptPassword(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *session.Client) error {
				user, err := c.Register(ctx, name, email, password)
				if err != nil {
					return err
				}
				cmd.Printf("Registered and signed in as %s <%s>\n", user.Name, user.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// NewLoginCmd はloginサブコマンドを生成する。
func NewLoginCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := promptPassword(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *session.Client) error {
				user, err := c.Login(ctx, email, password)
				if err != nil {
					return err
				}
				cmd.Printf("Signed in as %s <%s>\n", user.Name, user.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// NewLogoutCmd はlogoutサブコマンドを生成する。
// サーバーには通知せず、ローカルのセッションのみ破棄する。
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the saved session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *session.Client) error {
				if err := c.Logout(ctx); err != nil {
					return err
				}
				cmd.Println("Signed out")
				return nil
			})
		},
	}
}

// NewWhoamiCmd はwhoamiサブコマンドを生成する。
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the saved user without contacting the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(_ context.Context, c *session.Client) error {
				user := c.CurrentUser()
				if !c.IsAuthenticated() || user == nil {
					cmd.Println("Not signed in")
					return nil
				}
				cmd.Printf("%s <%s> (id: %s)\n", user.Name, user.Email, user.ID)
				return nil
			})
		},
	}
}

// NewProfileCmd はprofileサブコマンドを生成する。
func NewProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Fetch the signed-in user from the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *session.Client) error {
				user, err := c.Profile(ctx)
				if err != nil {
					return err
				}
				cmd.Printf("%s <%s> (id: %s)\n", user.Name, user.Email, user.ID)
				return nil
			})
		},
	}
}
