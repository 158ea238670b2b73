package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Hot-reload the device catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var out struct {
				Status  string `json:"status"`
				Message string `json:"message"`
			}
			if err := c.do("POST", "/admin/reload", &out); err != nil {
				return err
			}
			if !jsonOut {
				fmt.Println(out.Message)
			}
			return nil
		},
	}
}
