package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atinyakov/passvault/internal/crypto"
	"github.com/atinyakov/passvault/internal/keyvault"
	"github.com/atinyakov/passvault/internal/service"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the vault and choose its master secret",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			has, err := a.vault.HasMasterSecret()
			if err != nil {
				return err
			}
			if has {
				return fmt.Errorf("init: %w", keyvault.ErrAlreadyInitialized)
			}
			secret, err := a.prompt.NewSecret("New master secret: ")
			if err != nil {
				return err
			}
			score := crypto.ScorePasswordStrength(secret)
			fmt.Fprintf(a.out, "Master secret strength: %s\n", strengthLabel(score))

			if err := a.vault.SetupMasterSecret(secret); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Vault created in %s\n", a.opts.DataDir)
			return nil
		}),
	}
}

func newAddCmd() *cobra.Command {
	var (
		category string
		favorite bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a credential",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			if err := a.unlock(cmd); err != nil {
				return err
			}
			categoryID := ""
			if category != "" {
				c, err := a.findCategory(category)
				if err != nil {
					return err
				}
				categoryID = c.ID
			}
			in, err := a.prompt.PromptForCredential(categoryID)
			if err != nil {
				return err
			}
			in.Favorite = favorite

			c, err := a.vault.CreateCredential(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created %s (strength: %s)\n", c.ID, strengthLabel(c.StrengthScore))
			return nil
		}),
	}
	cmd.Flags().StringVar(&category, "category", "", "category name or id")
	cmd.Flags().BoolVar(&favorite, "favorite", false, "mark as favorite")
	return cmd
}

func newListCmd() *cobra.Command {
	var (
		category  string
		favorites bool
		query     string
		sortBy    string
		recent    int
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List credentials without revealing secrets",
		Args:    cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			if recent > 0 {
				printCredentials(a, a.vault.RecentlyUsed(recent))
				return nil
			}
			f := service.Filter{FavoritesOnly: favorites, Query: query}
			switch sortBy {
			case "", "title":
				f.Sort = service.SortByTitle
			case "updated":
				f.Sort = service.SortByUpdated
			case "strength":
				f.Sort = service.SortByStrength
			default:
				return fmt.Errorf("unknown sort %q (title, updated, strength)", sortBy)
			}
			if category != "" {
				c, err := a.findCategory(category)
				if err != nil {
					return err
				}
				f.CategoryID = c.ID
			}
			printCredentials(a, a.vault.ListCredentials(f))
			return nil
		}),
	}
	cmd.Flags().StringVar(&category, "category", "", "only this category (name or id)")
	cmd.Flags().BoolVar(&favorites, "favorites", false, "only favorites")
	cmd.Flags().StringVarP(&query, "query", "q", "", "search title, username and website")
	cmd.Flags().StringVar(&sortBy, "sort", "title", "sort by title, updated or strength")
	cmd.Flags().IntVar(&recent, "recent", 0, "show the N most recently used instead")
	return cmd
}

func newRevealCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reveal <id>",
		Short: "Print a credential's secret",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if err := a.unlock(cmd); err != nil {
				return err
			}
			return reveal(cmd, a, args[0])
		}),
	}
}

func reveal(cmd *cobra.Command, a *app, ref string) error {
	c, err := a.findCredential(ref)
	if err != nil {
		return err
	}
	secret, err := a.vault.RevealSecret(cmd.Context(), c.ID)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, secret)
	_, err = a.vault.RecordUsage(cmd.Context(), c.ID)
	return err
}

func newEditCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a credential",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if err := a.unlock(cmd); err != nil {
				return err
			}
			return edit(cmd, a, args[0], category)
		}),
	}
	cmd.Flags().StringVar(&category, "category", "", "move to this category (name or id)")
	return cmd
}

func edit(cmd *cobra.Command, a *app, ref, category string) error {
	c, err := a.findCredential(ref)
	if err != nil {
		return err
	}
	patch, secret, err := a.prompt.PromptEditCredential()
	if err != nil {
		return err
	}
	if category != "" {
		cat, err := a.findCategory(category)
		if err != nil {
			return err
		}
		patch.CategoryID = &cat.ID
	}
	updated, err := a.vault.UpdateCredential(cmd.Context(), c.ID, patch, secret)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %s (strength: %s)\n", updated.ID, strengthLabel(updated.StrengthScore))
	return nil
}

func newDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a credential",
		Args:    cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if err := a.unlock(cmd); err != nil {
				return err
			}
			c, err := a.findCredential(args[0])
			if err != nil {
				return err
			}
			if !yes {
				ok, err := a.prompt.Confirm(fmt.Sprintf("Delete %q?", c.Title))
				if err != nil || !ok {
					return err
				}
			}
			if err := a.vault.DeleteCredential(cmd.Context(), c.ID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted %s\n", c.ID)
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newFavoriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <id>",
		Short: "Toggle a credential's favorite mark",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if err := a.unlock(cmd); err != nil {
				return err
			}
			c, err := a.findCredential(args[0])
			if err != nil {
				return err
			}
			c, err = a.vault.ToggleFavorite(cmd.Context(), c.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s favorite: %t\n", c.Title, c.Favorite)
			return nil
		}),
	}
}

func newPasswdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the master secret",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			oldSecret, err := a.prompt.Secret("Current master secret: ")
			if err != nil {
				return err
			}
			newSecret, err := a.prompt.NewSecret("New master secret: ")
			if err != nil {
				return err
			}
			if err := a.vault.ChangeMasterSecret(oldSecret, newSecret); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Master secret changed (strength: %s)\n",
				strengthLabel(crypto.ScorePasswordStrength(newSecret)))
			return nil
		}),
	}
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Show weak, old and reused secrets",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			if err := a.unlock(cmd); err != nil {
				return err
			}
			report, err := a.vault.BuildSecurityReport(cmd.Context())
			if err != nil {
				return err
			}
			printReport(a, report)
			return nil
		}),
	}
}

func newCategoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"cat"},
		Short:   "List and manage categories",
		Args:    cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			printCategories(a, a.vault.ListCategories())
			return nil
		}),
	}

	var icon, colorHex string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a custom category",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			c, err := a.vault.AddCategory(cmd.Context(), strings.Join(args, " "), icon, colorHex)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created category %s (%s)\n", c.Name, c.ID)
			return nil
		}),
	}
	add.Flags().StringVar(&icon, "icon", "folder", "icon name")
	add.Flags().StringVar(&colorHex, "color", "#8E8E93", "color as #RRGGBB")

	remove := &cobra.Command{
		Use:   "remove <name or id>",
		Short: "Remove a custom category; its credentials become uncategorized",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			c, err := a.findCategory(strings.Join(args, " "))
			if err != nil {
				return err
			}
			if err := a.vault.RemoveCategory(cmd.Context(), c.ID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed category %s\n", c.Name)
			return nil
		}),
	}

	cmd.AddCommand(add, remove)
	return cmd
}

func newWipeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Destroy the vault's keys and data",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			if err := a.unlock(cmd); err != nil {
				return err
			}
			if !yes {
				ok, err := a.prompt.Confirm("This cannot be undone. Wipe the vault?")
				if err != nil || !ok {
					return err
				}
			}
			if err := a.vault.Wipe(cmd.Context()); err != nil {
				return err
			}
			a.session.Lock()
			fmt.Fprintln(a.out, "Vault wiped")
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
