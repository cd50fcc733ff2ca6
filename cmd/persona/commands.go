package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile <username>",
	Short: "Show a user's synthesized profile as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/user/" + args[0] + "/profile")
		if err != nil {
			return err
		}

		var profile any
		if err := decodeJSON(resp, &profile); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <username>",
	Short: "Show interaction counts for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/user/" + args[0] + "/stats")
		if err != nil {
			return err
		}

		var stats struct {
			TotalInteractions int `json:"total_interactions"`
			TotalChatTurns    int `json:"total_chat_turns"`
			TotalAnalyses     int `json:"total_analyses"`
		}
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		printStatus("Interactions", "%d", stats.TotalInteractions)
		printStatus("Chat turns", "%d", stats.TotalChatTurns)
		printStatus("Resume analyses", "%d", stats.TotalAnalyses)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <username>",
	Short: "Queue a profile rebuild for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/user/"+args[0]+"/update", nil)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Profile update %s for %s", result["status"], args[0])
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <username>",
	Short: "Show a plain-text profile report for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/user/" + args[0] + "/report")
		if err != nil {
			return err
		}

		var result struct {
			Report string `json:"report"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Report)
		return nil
	},
}
