package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/54b3r/docchat/internal/contacts"
)

// NewContactsCmd constructs the `docchat contacts` command, which lists the
// submissions recorded by POST /user_info.
func NewContactsCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "List contact form submissions",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			defer func() { err = finish(cmd, err) }()

			if path == "" {
				path = envOr("CONTACTS_XLSX", contacts.DefaultPath)
			}
			all, err := contacts.NewBook(path).All()
			if err != nil {
				return fmt.Errorf("contacts: %w", err)
			}
			if len(all) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no contacts in %s\n", path)
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPHONE\tEMAIL\tADDRESS")
			for _, c := range all {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, c.Phone, c.Email, c.Address)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&path, "file", "", "Contacts workbook (default: CONTACTS_XLSX or "+contacts.DefaultPath+")")
	return cmd
}
