package main

import (
	"context"
	"fmt"

	"portal/internal/models"
	"portal/internal/policy"
	"portal/internal/store"
	"portal/internal/store/memory"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	accessEmail    string
	accessSeedFile string
)

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Show which seeded projects a user may open",
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, err := store.LoadSeedFile(accessSeedFile)
		if err != nil {
			return err
		}
		user, rows, err := accessReport(cmd.Context(), seed, accessEmail)
		if err != nil {
			return err
		}
		pterm.DefaultSection.Printf("%s (%s)", user.Name, user.Role)
		table := pterm.TableData{{"PROJECT_ID", "NAME", "ACCESS"}}
		table = append(table, rows...)
		return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	},
}

func init() {
	accessCmd.Flags().StringVar(&accessEmail, "email", "", "user email")
	accessCmd.Flags().StringVar(&accessSeedFile, "seed", "", "seed file (defaults to the built-in data set)")
	_ = accessCmd.MarkFlagRequired("email")
}

// accessReport lists every project in the seed with the access decision for
// the user registered under email.
func accessReport(ctx context.Context, seed store.Seed, email string) (models.User, [][]string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	st := memory.NewStore()
	if err := st.Seed(ctx, seed); err != nil {
		return models.User{}, nil, err
	}
	user, found, err := st.FindUserByEmail(ctx, email)
	if err != nil {
		return models.User{}, nil, err
	}
	if !found {
		return models.User{}, nil, fmt.Errorf("no user with email %q", email)
	}
	projects, err := st.ListProjects(ctx)
	if err != nil {
		return models.User{}, nil, err
	}
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		decision := "restricted"
		if policy.HasAccess(&user, p.ProjectID) {
			decision = "open"
		}
		rows = append(rows, []string{p.ProjectID, p.Name, decision})
	}
	return user, rows, nil
}
