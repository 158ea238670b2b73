package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/switchyard-lab/switchyard/pkg/inventory"
)

func newReserveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reserve <vendor> <model> <version>",
		Short: "Reserve an available machine",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var m inventory.Machine
			path := fmt.Sprintf("/reserve/%s/%s/%s", args[0], args[1], args[2])
			if err := c.do("POST", path, &m); err != nil {
				return err
			}
			if !jsonOut {
				fmt.Printf("reserved %s (%s) at %s:%d\n", m.Serial, m.Hostname, m.MgmtIP, m.Port)
			}
			return nil
		},
	}
}
