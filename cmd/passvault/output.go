package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/atinyakov/passvault/internal/crypto"
	"github.com/atinyakov/passvault/internal/models"
)

var tierColors = map[models.StrengthTier]*color.Color{
	models.VeryWeak:   color.New(color.FgRed, color.Bold),
	models.Weak:       color.New(color.FgRed),
	models.Medium:     color.New(color.FgYellow),
	models.Strong:     color.New(color.FgGreen),
	models.VeryStrong: color.New(color.FgGreen, color.Bold),
}

var (
	heading = color.New(color.Bold)
	warning = color.New(color.FgYellow)
)

func strengthLabel(score int) string {
	tier := crypto.TierFor(score)
	return tierColors[tier].Sprintf("%s (%d)", tier, score)
}

func printCredentials(a *app, list []models.Credential) {
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No credentials.")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tUSERNAME\tCATEGORY\tSTRENGTH\t")
	for _, c := range list {
		title := c.Title
		if c.Favorite {
			title = "* " + title
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			c.ID, title, c.Username, a.vault.ResolveCategory(c.CategoryID).Name, strengthLabel(c.StrengthScore))
	}
	_ = tw.Flush()
}

func printCategories(a *app, list []models.Category) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tICON\tCOLOR\t")
	for _, c := range list {
		name := c.Name
		if c.IsBuiltIn {
			name += " (built-in)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", c.ID, name, c.Icon, c.ColorHex)
	}
	_ = tw.Flush()
}

func printReport(a *app, r models.SecurityReport) {
	heading.Fprintf(a.out, "Security report (%d credentials, average strength %.0f)\n", r.Total, r.AverageScore)
	for tier := models.VeryWeak; tier <= models.VeryStrong; tier++ {
		fmt.Fprintf(a.out, "  %-12s %d\n", tierColors[tier].Sprint(tier.String()), r.TierCounts[tier])
	}

	section := func(title string, list []models.CredentialSummary) {
		heading.Fprintf(a.out, "\n%s: %d\n", title, len(list))
		for _, c := range list {
			fmt.Fprintf(a.out, "  %s  %s  %s\n", c.ID, c.Title, c.UpdatedAt.Format("2006-01-02"))
		}
	}
	section("Weak", r.Weak)
	section(fmt.Sprintf("Not changed in %d days", a.opts.MaxSecretAgeDays), r.Old)

	heading.Fprintf(a.out, "\nReused: %d\n", len(r.Reused))
	for _, group := range r.Reused {
		titles := make([]string, len(group))
		for i, c := range group {
			titles[i] = c.Title
		}
		warning.Fprintf(a.out, "  same secret: %s\n", strings.Join(titles, ", "))
	}

	if len(r.Undecryptable) > 0 {
		section("Could not be decrypted", r.Undecryptable)
	}
}
