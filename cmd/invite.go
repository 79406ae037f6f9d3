package cmd

import (
	"fmt"

	"community-access-client/internal/models"
	"community-access-client/internal/services"

	"github.com/spf13/cobra"
)

var generateIn services.GenerateInput

var inviteCmd = &cobra.Command{
	Use:   "invite",
	Short: "Generate and manage access invitations",
}

var inviteGenerateCmd = &cobra.Command{
	Use:   "generate <family|renter|oneTimePass|permission>",
	Short: "Generate an invitation of the given type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}

		inv, err := a.invitations.Generate(ctx, models.InvitationType(args[0]), generateIn)
		if err != nil {
			return err
		}

		switch inv.Type {
		case models.InvitationOneTimePass:
			fmt.Printf("One-time pass for %s created.\nQR payload (base64): %s\n", inv.GuestName, inv.QRCode)
		case models.InvitationPermission:
			fmt.Printf("Gate permission for %s submitted (%s to %s)\n", inv.GuestName, inv.From, inv.To)
		default:
			fmt.Printf("Invitation code: %s\n", inv.Code)
		}
		return nil
	},
}

var inviteListCmd = &cobra.Command{
	Use:   "list <family|renter|oneTimePass|permission>",
	Short: "List invitations of the given type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}

		items, err := a.invitations.ListByType(ctx, models.InvitationType(args[0]))
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No invitations")
			return nil
		}
		for _, inv := range items {
			line := fmt.Sprintf("%-36s  %-8s  %s", inv.InvitationID, inv.Status, inv.GeneratedAt)
			if inv.Code != "" {
				line += "  code=" + inv.Code
			}
			if inv.GuestName != "" {
				line += "  guest=" + inv.GuestName
			}
			if inv.From != "" {
				line += fmt.Sprintf("  %s..%s", inv.From, inv.To)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var inviteToggleCmd = &cobra.Command{
	Use:   "toggle <permission-id> <active|expired>",
	Short: "Activate or deactivate a gate permission",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}

		if err := a.invitations.SetPermissionStatus(ctx, args[0], models.CodeStatus(args[1])); err != nil {
			return err
		}
		fmt.Println("Permission updated")
		return nil
	},
}

func init() {
	inviteGenerateCmd.Flags().StringVar(&generateIn.RentFrom, "rent-from", "", "Tenant code start date (YYYY-MM-DD)")
	inviteGenerateCmd.Flags().StringVar(&generateIn.RentTo, "rent-to", "", "Tenant code end date (YYYY-MM-DD)")
	inviteGenerateCmd.Flags().StringVar(&generateIn.GuestName, "guest-name", "", "Guest name")
	inviteGenerateCmd.Flags().StringVar(&generateIn.GuestRide, "guest-ride", "", "Guest vehicle description")
	inviteGenerateCmd.Flags().StringVar(&generateIn.Description, "description", "", "Gate permission description")
	inviteGenerateCmd.Flags().StringVar(&generateIn.DateFrom, "date-from", "", "Gate permission start date (YYYY-MM-DD)")
	inviteGenerateCmd.Flags().StringVar(&generateIn.DateTo, "date-to", "", "Gate permission end date (YYYY-MM-DD)")

	inviteCmd.AddCommand(inviteGenerateCmd, inviteListCmd, inviteToggleCmd)
	rootCmd.AddCommand(inviteCmd)
}
