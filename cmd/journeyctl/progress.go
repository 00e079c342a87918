package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/journeys/internal/journey"
	"github.com/alfredjeanlab/journeys/internal/model"
)

var recordCmd = &cobra.Command{
	Use:     "record <user-id> <step-id>",
	Short:   "Append a progression record for a user at a step",
	GroupID: "progress",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseID(args[0], "user id")
		if err != nil {
			return err
		}
		stepID, err := parseID(args[1], "step id")
		if err != nil {
			return err
		}
		typ, _ := cmd.Flags().GetString("type")
		atFlag, _ := cmd.Flags().GetString("at")

		var at time.Time
		if atFlag != "" {
			at, err = time.Parse(time.RFC3339, atFlag)
			if err != nil {
				return fmt.Errorf("invalid --at %q: expected RFC 3339", atFlag)
			}
		}

		us, err := deps.svc.RecordStep(cmd.Context(), userID, stepID, model.UserStepType(typ), at)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(os.Stdout, us)
		}
		fmt.Printf("Recorded %s for user %d at step %d (journey %d)\n",
			styler.Status(us.Type), us.UserID, us.StepID, us.JourneyID)
		return nil
	},
}

// position is the current location of a user in a journey.
type position struct {
	UserStep *model.UserStep `json:"user_step"`
	Step     *model.Step     `json:"step,omitempty"`
}

var positionCmd = &cobra.Command{
	Use:     "position <user-id> [journey-id]",
	Short:   "Show the latest step a user reached in one or every journey",
	GroupID: "progress",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		userID, err := parseID(args[0], "user id")
		if err != nil {
			return err
		}

		var journeyIDs []int64
		if len(args) == 2 {
			id, err := parseID(args[1], "journey id")
			if err != nil {
				return err
			}
			journeyIDs = []int64{id}
		} else {
			journeyIDs, err = deps.svc.JourneyIDsForUser(ctx, userID)
			if err != nil {
				return err
			}
		}

		positions := make([]position, 0, len(journeyIDs))
		for _, jid := range journeyIDs {
			us, err := deps.svc.Latest(ctx, userID, jid)
			if err != nil {
				return err
			}
			// The step may have been removed from the graph since.
			step, err := deps.svc.Step(ctx, us.StepID)
			if err != nil && !errors.Is(err, journey.ErrNotFound) {
				return err
			}
			positions = append(positions, position{UserStep: us, Step: step})
		}

		if jsonOutput {
			if len(args) == 2 {
				return printJSON(os.Stdout, positions[0])
			}
			return printJSON(os.Stdout, positions)
		}
		if len(positions) == 0 {
			fmt.Printf("User %d has no progression records\n", userID)
			return nil
		}
		printPositions(os.Stdout, positions)
		return nil
	},
}

var reachedCmd = &cobra.Command{
	Use:     "reached <user-id> <step-id>",
	Short:   "Show the latest record of a user at a step with a given status",
	GroupID: "progress",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseID(args[0], "user id")
		if err != nil {
			return err
		}
		stepID, err := parseID(args[1], "step id")
		if err != nil {
			return err
		}
		typ, _ := cmd.Flags().GetString("type")

		us, err := deps.svc.LatestOfType(cmd.Context(), userID, stepID, model.UserStepType(typ))
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(os.Stdout, us)
		}
		fmt.Printf("User %d reached step %d as %s at %s\n",
			us.UserID, us.StepID, styler.Status(us.Type), us.CreatedAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	recordCmd.Flags().StringP("type", "t", string(model.UserStepCompleted), "status tag (completed, pending, delay, error)")
	recordCmd.Flags().String("at", "", "record time in RFC 3339 (default now)")

	reachedCmd.Flags().StringP("type", "t", string(model.UserStepCompleted), "status tag to look for")
}
