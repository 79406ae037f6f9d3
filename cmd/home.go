package cmd

import (
	"fmt"

	"community-access-client/internal/models"

	"github.com/spf13/cobra"
)

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Show your own gate entry credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}

		id, err := a.home.Identity(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n%s - %s\nQR payload (base64): %s\n",
			id.FirstName, id.LastName, id.Project, id.Unit, id.QRCode)
		return nil
	},
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Show the community home feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}

		feed, err := a.home.Feed(ctx)
		if err != nil {
			return err
		}
		printSection("Ads", feed.Ads)
		printSection("News", feed.News)
		printSection("Media", feed.Media)
		return nil
	},
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "List notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}

		items, err := a.home.Notifications(ctx)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No notifications")
			return nil
		}
		for _, n := range items {
			fmt.Printf("[%s] %s\n  %s\n", n.DateTime, n.Title, n.Body)
		}
		return nil
	},
}

func printSection(title string, items []models.FeedItem) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("%s:\n", title)
	for _, item := range items {
		fmt.Printf("  %s", item.ItemTitle)
		if item.ItemBody != "" {
			fmt.Printf(": %s", item.ItemBody)
		}
		fmt.Println()
	}
}

func init() {
	rootCmd.AddCommand(accessCmd, feedCmd, notificationsCmd)
}
