package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dominhhai/mws-sdk/catalog"
	"github.com/spf13/cobra"
)

var actionsCmd = &cobra.Command{
	Use:   "actions [SECTION [ACTION]]",
	Short: "List catalog sections, actions and parameters",
	Args:  cobra.MaximumNArgs(2),
	RunE:  runActions,
}

func init() {
	rootCmd.AddCommand(actionsCmd)
}

func runActions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Catalog.Path == "" {
		return fmt.Errorf("no catalog configured: set catalog.path or pass --catalog")
	}
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	switch len(args) {
	case 0:
		fmt.Fprintln(w, "SECTION\tPATH\tVERSION\tACTIONS")
		for _, s := range cat.Sections() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.Name, s.Path, s.Version, len(s.Actions()))
		}
	case 1:
		s, err := cat.Section(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "ACTION\tUPLOAD\tQUOTA\tDESCRIPTION")
		for _, a := range s.Actions() {
			quota := "-"
			if tc := a.Descriptor.Throttle; tc.Enabled() {
				quota = fmt.Sprintf("%d/%s", tc.Quota, tc.Restore)
			}
			fmt.Fprintf(w, "%s\t%v\t%s\t%s\n", a.Name, a.Descriptor.Upload, quota, a.Description)
		}
	case 2:
		a, err := cat.Action(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "PARAMETER\tWIRE\tKIND\tTYPE\tREQUIRED\tCHOICES")
		for _, p := range a.Specs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%s\n",
				p.Name, p.WireName(), p.Kind, p.Type, p.Required, strings.Join(p.Choices, ","))
		}
	}
	return nil
}
