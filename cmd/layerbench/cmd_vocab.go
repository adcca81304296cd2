package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nvandessel/layerbench/internal/normalize"
)

func newVocabCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Inspect protocol vocabularies",
	}
	cmd.AddCommand(newVocabListCmd())
	return cmd
}

func newVocabListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show how each protocol's keys map onto canonical metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			protocol, _ := cmd.Flags().GetString("protocol")

			app, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.normalizer()
			if err != nil {
				return err
			}

			protocols := n.Protocols()
			if protocol != "" {
				if _, ok := n.Vocabulary(protocol); !ok {
					return &normalize.UnknownProtocolError{Protocol: protocol}
				}
				protocols = []string{protocol}
			}

			vocabs := make([]normalize.Vocabulary, 0, len(protocols))
			for _, p := range protocols {
				v, _ := n.Vocabulary(p)
				vocabs = append(vocabs, v)
			}

			if app.jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(vocabs)
			}

			w := cmd.OutOrStdout()
			for i, v := range vocabs {
				if i > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprintf(w, "%s: %s\n", v.Protocol, v.Description)
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "  LAYER\tMETRIC\tUNIT\tPOLARITY\tTHRESHOLD\tSOURCE")
				for _, e := range v.Metrics {
					source := strings.Join(e.Keys, ", ")
					if e.Composite() {
						source = "sum of " + strings.Join(e.SumOf, " + ")
					}
					if source == "" {
						source = "(canonical name)"
					}
					threshold := "-"
					if e.PracticalThreshold > 0 {
						threshold = fmt.Sprintf("%g", e.PracticalThreshold)
					}
					fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\n",
						e.Layer, e.Name, e.Unit, e.Polarity, threshold, source)
				}
				tw.Flush()
				if len(v.Ignore) > 0 {
					fmt.Fprintf(w, "  ignored: %s\n", strings.Join(v.Ignore, ", "))
				}
			}
			return nil
		},
	}
	cmd.Flags().String("protocol", "", "Show only this protocol")
	return cmd
}
