package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	apiURL  string
	verbose bool
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "bookpilot",
		Short: "BookPilot CLI for booking automation",
		Long:  `BookPilot CLI lets you inspect and manage the booking automation service`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8090", "BookPilot API URL")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose output")

	// Bind flags to viper
	viper.BindPFlag("api-url", rootCmd.PersistentFlags().Lookup("api-url"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Environment variable support
	viper.SetEnvPrefix("BOOKPILOT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Add commands
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(availabilityCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(bookingsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show service load",
		Long:  `Show the concurrency, pool, and session status of the running service`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/status")
		},
	}
}

func availabilityCmd() *cobra.Command {
	var email, date string

	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Discover open slots",
		Long:  `Discover open appointment slots, keeping a session alive for a follow-up booking`,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if email != "" {
				q.Set("email", email)
			}
			if date != "" {
				q.Set("date", date)
			}
			return getJSON("/api/v1/availability?" + q.Encode())
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Identity key for session reuse")
	cmd.Flags().StringVar(&date, "date", "", "Date to query (YYYY-MM-DD)")
	return cmd
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Session management commands",
		Long:  `Commands for inspecting and cleaning up live browser sessions`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List live sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/sessions")
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [key]",
		Short: "Force cleanup of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequest(http.MethodDelete,
				viper.GetString("api-url")+"/api/v1/sessions/"+url.PathEscape(args[0]), nil)
			if err != nil {
				return err
			}
			return doRequest(req)
		},
	})

	return cmd
}

func bookingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "Booking record commands",
		Long:  `Commands for inspecting persisted booking records`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List booking records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/bookings")
		},
	})

	return cmd
}

func getJSON(path string) error {
	req, err := http.NewRequest(http.MethodGet, viper.GetString("api-url")+path, nil)
	if err != nil {
		return err
	}
	return doRequest(req)
}

func doRequest(req *http.Request) error {
	client := &http.Client{Timeout: 90 * time.Second}

	if verbose {
		fmt.Fprintf(os.Stderr, "%s %s\n", req.Method, req.URL)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var pretty map[string]any
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return nil
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
	return nil
}
