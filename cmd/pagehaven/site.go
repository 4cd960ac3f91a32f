package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/sagarc03/pagehaven"
)

var siteCmd = &cobra.Command{
	Use:   "site",
	Short: "Manage sites, members and invites",
	Long: `Manage the sites served by this worker.

Access types:
  public      anyone can read
  password    visitors must pass the password gate of the web app
  private     only the owner, members and invited users can read
  owner_only  only the owner can read

Examples:
  pagehaven site create blog --owner user-1
  pagehaven site access blog --type password
  pagehaven site member add blog user-2
  pagehaven site invite add blog --email friend@example.com`,
}

var (
	siteOwner    string
	createAccess string
	siteAccess   string
	sitePassword string
	siteJSON     bool
	siteYes      bool
	inviteUserID string
	inviteEmail  string
)

var siteCreateCmd = &cobra.Command{
	Use:   "create <subdomain>",
	Short: "Create a site",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		access, err := pagehaven.ParseAccessType(createAccess)
		if err != nil {
			return err
		}

		hash, err := passwordHashFor(access)
		if err != nil || (access == pagehaven.AccessPassword && hash == "") {
			return err
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		site, err := a.sites.CreateSite(cmd.Context(), pagehaven.NewSite{
			Subdomain:    args[0],
			OwnerID:      siteOwner,
			AccessType:   access,
			PasswordHash: hash,
		})
		if err != nil {
			return err
		}

		slog.Info("site created", "subdomain", site.Subdomain, "id", site.ID, "access", site.AccessType)
		if siteJSON {
			return writeJSON(cmd.OutOrStdout(), site)
		}
		return writeSiteDetail(cmd.OutOrStdout(), site)
	},
}

var siteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sites",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		sites, err := a.sites.ListSites(cmd.Context())
		if err != nil {
			return err
		}

		if siteJSON {
			return writeJSON(cmd.OutOrStdout(), sites)
		}
		if len(sites) == 0 {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No sites.")
			return nil
		}
		return writeSiteTable(cmd.OutOrStdout(), sites)
	},
}

var siteShowCmd = &cobra.Command{
	Use:   "show <subdomain>",
	Short: "Show a site with its members and invites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		site, err := a.sites.GetSite(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if siteJSON {
			return writeJSON(cmd.OutOrStdout(), site)
		}
		return writeSiteDetail(cmd.OutOrStdout(), site)
	},
}

var siteAccessCmd = &cobra.Command{
	Use:   "access <subdomain>",
	Short: "Change the access type of a site",
	Long: `Change the access type of a site.

For the password type the password is read from --password or prompted
for, and only its bcrypt hash is stored. Changing to any other type
clears the stored hash.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		access, err := pagehaven.ParseAccessType(siteAccess)
		if err != nil {
			return err
		}

		hash, err := passwordHashFor(access)
		if err != nil || (access == pagehaven.AccessPassword && hash == "") {
			return err
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.sites.SetAccess(cmd.Context(), args[0], access, hash); err != nil {
			return err
		}

		slog.Info("site access changed", "subdomain", args[0], "access", access)
		return nil
	},
}

var siteDeleteCmd = &cobra.Command{
	Use:   "delete <subdomain>",
	Short: "Delete a site and soft-delete its objects",
	Long: `Delete a site together with its members and invites.

Its objects are soft-deleted; run 'pagehaven cleanup' to remove the
blobs from storage.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		subdomain := args[0]

		if !siteYes {
			prompt := promptui.Prompt{
				Label:     fmt.Sprintf("Delete site '%s' and all of its files", subdomain),
				IsConfirm: true,
			}
			if _, err := prompt.Run(); err != nil {
				return handlePromptError(err)
			}
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		marked, err := a.sites.DeleteSite(cmd.Context(), subdomain)
		if err != nil {
			return err
		}

		slog.Info("site deleted", "subdomain", subdomain, "objects_marked", marked)
		return nil
	},
}

var siteMemberCmd = &cobra.Command{
	Use:   "member",
	Short: "Manage members of a site",
}

var siteMemberAddCmd = &cobra.Command{
	Use:   "add <subdomain> <user-id>",
	Short: "Add a member",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.sites.AddMember(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}

		slog.Info("member added", "subdomain", args[0], "user_id", args[1])
		return nil
	},
}

var siteMemberRemoveCmd = &cobra.Command{
	Use:   "remove <subdomain> <user-id>",
	Short: "Remove a member",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.sites.RemoveMember(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}

		slog.Info("member removed", "subdomain", args[0], "user_id", args[1])
		return nil
	},
}

var siteInviteCmd = &cobra.Command{
	Use:   "invite",
	Short: "Manage invites of a site",
}

var siteInviteAddCmd = &cobra.Command{
	Use:   "add <subdomain>",
	Short: "Invite a user by id, email or both",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		invite := pagehaven.Invite{UserID: inviteUserID, Email: inviteEmail}
		if err := a.sites.AddInvite(cmd.Context(), args[0], invite); err != nil {
			return err
		}

		slog.Info("invite added", "subdomain", args[0], "user_id", invite.UserID, "email", invite.Email)
		return nil
	},
}

var siteInviteAcceptCmd = &cobra.Command{
	Use:   "accept <subdomain>",
	Short: "Turn a pending invite into a membership",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if inviteUserID == "" {
			return errors.New("--user-id is required")
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		identity := pagehaven.Identity{UserID: inviteUserID, Email: inviteEmail}
		if err := a.sites.AcceptInvite(cmd.Context(), args[0], identity); err != nil {
			return err
		}

		slog.Info("invite accepted", "subdomain", args[0], "user_id", identity.UserID)
		return nil
	},
}

func init() {
	siteCmd.PersistentFlags().BoolVar(&siteJSON, "json", false, "print JSON instead of a table")

	siteCreateCmd.Flags().StringVar(&siteOwner, "owner", "", "owner user id")
	siteCreateCmd.Flags().StringVar(&createAccess, "type", string(pagehaven.AccessPublic), "access type: public, password, private, owner_only")
	siteCreateCmd.Flags().StringVar(&sitePassword, "password", "", "site password for the password type (prompted when empty)")
	_ = siteCreateCmd.MarkFlagRequired("owner")

	siteAccessCmd.Flags().StringVar(&siteAccess, "type", "", "access type: public, password, private, owner_only")
	siteAccessCmd.Flags().StringVar(&sitePassword, "password", "", "site password for the password type (prompted when empty)")
	_ = siteAccessCmd.MarkFlagRequired("type")

	siteDeleteCmd.Flags().BoolVarP(&siteYes, "yes", "y", false, "skip the confirmation prompt")

	for _, c := range []*cobra.Command{siteInviteAddCmd, siteInviteAcceptCmd} {
		c.Flags().StringVar(&inviteUserID, "user-id", "", "invited user id")
		c.Flags().StringVar(&inviteEmail, "email", "", "invited email address")
	}

	siteMemberCmd.AddCommand(siteMemberAddCmd, siteMemberRemoveCmd)
	siteInviteCmd.AddCommand(siteInviteAddCmd, siteInviteAcceptCmd)
	siteCmd.AddCommand(siteCreateCmd, siteListCmd, siteShowCmd, siteAccessCmd, siteDeleteCmd, siteMemberCmd, siteInviteCmd)
	rootCmd.AddCommand(siteCmd)
}

// passwordHashFor returns the bcrypt hash to store for a site of the given
// access type. It is empty for every type but password, and also empty
// when the password prompt was cancelled.
func passwordHashFor(access pagehaven.AccessType) (string, error) {
	if access != pagehaven.AccessPassword {
		return "", nil
	}

	password := sitePassword
	if password == "" {
		prompt := promptui.Prompt{
			Label: "Site password",
			Mask:  '*',
			Validate: func(input string) error {
				if len(input) < 4 {
					return errors.New("password must be at least 4 characters")
				}
				return nil
			},
		}

		var err error
		password, err = prompt.Run()
		if err != nil {
			return "", handlePromptError(err)
		}
	}

	return hashPassword(password)
}

func hashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password cannot be empty", pagehaven.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
