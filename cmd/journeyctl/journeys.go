package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/journeys/internal/journey"
	"github.com/alfredjeanlab/journeys/internal/model"
)

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: expected a positive integer", what, s)
	}
	return id, nil
}

func requireProject() error {
	if projectID <= 0 {
		return fmt.Errorf("--project is required (or set JOURNEYS_PROJECT_ID)")
	}
	return nil
}

var createCmd = &cobra.Command{
	Use:     "create <name>",
	Short:   "Create a journey with its entrance step",
	GroupID: "journeys",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProject(); err != nil {
			return err
		}
		description, _ := cmd.Flags().GetString("description")

		j, err := deps.svc.Create(cmd.Context(), projectID, model.JourneyParams{
			Name:        args[0],
			Description: description,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(os.Stdout, j)
		}
		fmt.Printf("Created journey %s\n", styler.Accent(strconv.FormatInt(j.ID, 10)))
		printJourney(os.Stdout, j)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:     "show <id>",
	Short:   "Show journey details",
	GroupID: "journeys",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProject(); err != nil {
			return err
		}
		id, err := parseID(args[0], "journey id")
		if err != nil {
			return err
		}
		j, err := deps.svc.Get(cmd.Context(), id, projectID)
		if err != nil {
			return err
		}
		entrance, err := deps.svc.Entrance(cmd.Context(), id)
		if err != nil && !errors.Is(err, journey.ErrNotFound) {
			return err
		}
		if jsonOutput {
			return printJSON(os.Stdout, journeyDetail{Journey: j, Entrance: entrance})
		}
		printJourney(os.Stdout, j)
		if entrance != nil {
			fmt.Printf("%-12s %s (step %d)\n", "Entrance:", entrance.ExternalID, entrance.ID)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List journeys",
	GroupID: "journeys",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		sort, _ := cmd.Flags().GetString("sort")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		includeDeleted, _ := cmd.Flags().GetBool("include-deleted")
		all, _ := cmd.Flags().GetBool("all")
		if err := requireProject(); err != nil {
			return err
		}

		if all {
			journeys, err := deps.svc.All(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(os.Stdout, listResult{Journeys: journeys, Total: len(journeys)})
			}
			printJourneyTable(os.Stdout, journeys, len(journeys))
			return nil
		}

		journeys, total, err := deps.svc.List(cmd.Context(), projectID, model.JourneyFilter{
			Search:         search,
			Sort:           sort,
			Limit:          limit,
			Offset:         offset,
			IncludeDeleted: includeDeleted,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(os.Stdout, listResult{Journeys: journeys, Total: total})
		}
		printJourneyTable(os.Stdout, journeys, total)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:     "update <id>",
	Short:   "Rename a journey or change its description",
	GroupID: "journeys",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "journey id")
		if err != nil {
			return err
		}

		var p model.UpdateJourneyParams
		if cmd.Flags().Changed("name") {
			v, _ := cmd.Flags().GetString("name")
			p.Name = &v
		}
		if cmd.Flags().Changed("description") {
			v, _ := cmd.Flags().GetString("description")
			p.Description = &v
		}
		if p.Name == nil && p.Description == nil {
			return fmt.Errorf("nothing to update: pass --name or --description")
		}

		j, err := deps.svc.Update(cmd.Context(), id, p)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(os.Stdout, j)
		}
		fmt.Printf("Updated journey %d\n", j.ID)
		printJourney(os.Stdout, j)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Short:   "Soft-delete a journey",
	GroupID: "journeys",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "journey id")
		if err != nil {
			return err
		}
		if err := deps.svc.Delete(cmd.Context(), id); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(os.Stdout, map[string]any{"id": id, "deleted": true})
		}
		fmt.Printf("Deleted journey %d\n", id)
		return nil
	},
}

func init() {
	createCmd.Flags().StringP("description", "d", "", "journey description")

	listCmd.Flags().StringP("search", "s", "", "case-insensitive name filter")
	listCmd.Flags().String("sort", "-updated_at", "sort column, prefix with - for descending")
	listCmd.Flags().Int("limit", 20, "maximum number of journeys")
	listCmd.Flags().Int("offset", 0, "number of journeys to skip")
	listCmd.Flags().Bool("include-deleted", false, "include soft-deleted journeys")
	listCmd.Flags().Bool("all", false, "list every live journey of --project without paging")

	updateCmd.Flags().String("name", "", "new journey name")
	updateCmd.Flags().StringP("description", "d", "", "new journey description")
}
