package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release <serial>",
		Short: "Release a reserved machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var out struct {
				Status  string `json:"status"`
				Message string `json:"message"`
			}
			if err := c.do("POST", "/release/"+args[0], &out); err != nil {
				return err
			}
			if !jsonOut {
				fmt.Println(out.Message)
			}
			return nil
		},
	}
}
