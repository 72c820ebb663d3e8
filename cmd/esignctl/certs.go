package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCertsCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "certs",
		Short: "List the certificates available for signing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd, opts)
			if err != nil {
				return err
			}
			defer svc.Close()

			certs := svc.Orchestrator.ListCertificates(cmd.Context())
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(certs)
			}
			if len(certs) == 0 {
				fmt.Fprintln(out, "no certificates available")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "THUMBPRINT\tSUBJECT\tISSUER\tVALID TO")
			for _, c := range certs {
				validTo := "-"
				if !c.ValidTo.IsZero() {
					validTo = c.ValidTo.Format("2006-01-02")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Thumbprint, c.SubjectName, c.IssuerLabel, validTo)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the certificates as JSON")
	return cmd
}
