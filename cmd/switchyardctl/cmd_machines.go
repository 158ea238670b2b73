package main

import (
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/switchyard-lab/switchyard/pkg/inventory"
)

func newMachinesCmd() *cobra.Command {
	var vendor, model, version, status string

	cmd := &cobra.Command{
		Use:   "machines",
		Short: "List machines in the inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			q := url.Values{}
			for k, v := range map[string]string{
				"vendor": vendor, "model": model, "version": version, "status": status,
			} {
				if v != "" {
					q.Set(k, v)
				}
			}
			path := "/machines"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var out struct {
				Machines []inventory.Machine `json:"machines"`
			}
			if err := c.do("GET", path, &out); err != nil {
				return err
			}
			if jsonOut {
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SERIAL\tVENDOR\tMODEL\tVERSION\tMGMT IP\tSTATUS")
			for _, m := range out.Machines {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					m.Serial, m.Vendor, m.Model, m.Version, m.MgmtIP, m.Status)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&vendor, "vendor", "", "Filter by vendor")
	cmd.Flags().StringVar(&model, "model", "", "Filter by model")
	cmd.Flags().StringVar(&version, "version", "", "Filter by version")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	return cmd
}
