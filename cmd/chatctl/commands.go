package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sweety-ai/sweety-chat/internal/model"
)

func addCommands(root *cobra.Command) {
	root.AddCommand(signupCmd(), loginCmd(), logoutCmd(), statusCmd(), chatCmd(), historyCmd(), resetCmd())
}

func clientFor(*cobra.Command) (*client, error) {
	return newClient(apiFlag, cookieFileFlag)
}

func signupCmd() *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			var out struct {
				Username string `json:"username"`
			}
			body := map[string]string{"username": username, "email": email, "password": password}
			if err := c.post(cmd.Context(), "/api/signup", body, &out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", out.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (required)")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Email (required)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (required)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func loginCmd() *cobra.Command {
	var login, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a username or email",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			var out struct {
				Username string `json:"username"`
			}
			body := map[string]string{"username": login, "password": password}
			if err := c.post(cmd.Context(), "/api/login", body, &out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", out.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&login, "username", "u", "", "Username or email (required)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (required)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			if err := c.post(cmd.Context(), "/api/logout", nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show who is logged in",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			var out struct {
				LoggedIn bool   `json:"logged_in"`
				Username string `json:"username"`
			}
			if err := c.get(cmd.Context(), "/api/user-status", &out); err != nil {
				return err
			}
			if !out.LoggedIn {
				fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", out.Username)
			return nil
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat MESSAGE...",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			var out struct {
				Response string `json:"response"`
			}
			body := map[string]string{"message": strings.Join(args, " ")}
			if err := c.post(cmd.Context(), "/chat", body, &out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Response)
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print recent conversation turns of the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			var out struct {
				Conversations []model.Conversation `json:"conversations"`
				Degraded      bool                 `json:"degraded"`
			}
			if err := c.get(cmd.Context(), "/history", &out); err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), out.Conversations, out.Degraded)
			return nil
		},
	}
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete the current transcript and start a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFor(cmd)
			if err != nil {
				return err
			}
			if err := c.post(cmd.Context(), "/new-session", nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "new session started")
			return nil
		},
	}
}

func printHistory(w io.Writer, convs []model.Conversation, degraded bool) {
	if degraded {
		fmt.Fprintln(w, "(history unavailable)")
		return
	}
	if len(convs) == 0 {
		fmt.Fprintln(w, "(no messages)")
		return
	}
	for _, c := range convs {
		fmt.Fprintf(w, "[%s] you: %s\n", c.Timestamp.Format("15:04:05"), c.UserMessage)
		fmt.Fprintf(w, "[%s] sweety: %s\n", c.Timestamp.Format("15:04:05"), c.AIResponse)
	}
}
