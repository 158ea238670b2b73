package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check daemon health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var out struct {
				Status string `json:"status"`
			}
			if err := c.do("GET", "/health", &out); err != nil {
				return err
			}
			if !jsonOut {
				fmt.Println(out.Status)
			}
			return nil
		},
	}
}
