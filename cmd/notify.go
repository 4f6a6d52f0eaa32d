package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lukamindo/tiktok_live_go/live"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send a message confirming the bot token and chat work",
	RunE: func(cmd *cobra.Command, args []string) error {
		notifier, err := newNotifier(cfg)
		if err != nil {
			return err
		}
		if err := notifier.Send(cmd.Context(), live.PingMessage()); err != nil {
			return err
		}
		name, err := notifier.BotName()
		if err != nil {
			cmd.Println("ping sent")
			return nil
		}
		cmd.Printf("ping sent as @%s\n", name)
		return nil
	},
}

var testUser string

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a fake live alert without checking anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		who := live.NormalizeAccount(testUser)
		if who == "" {
			who = "someone"
		}

		notifier, err := newNotifier(cfg)
		if err != nil {
			return err
		}
		if err := notifier.Send(cmd.Context(), live.TestMessage(who)); err != nil {
			return err
		}
		cmd.Printf("test alert sent for %s\n", who)
		return nil
	},
}

func init() {
	testCmd.Flags().StringVar(&testUser, "user", "", "account named in the alert")
	rootCmd.AddCommand(pingCmd, testCmd)
}
