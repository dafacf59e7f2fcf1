/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"chainguard.dev/reflecteval/agents/judge"
	"chainguard.dev/reflecteval/agents/schema"
	"chainguard.dev/reflecteval/agents/taxonomy"
	"chainguard.dev/reflecteval/internal/app"
	"chainguard.dev/reflecteval/pipeline"
	"chainguard.dev/reflecteval/report"
)

// errFailures makes the process exit non-zero after a report has been
// printed.
var errFailures = errors.New("failures reported")

// builder assembles the pipeline on first use, so commands that do not
// need it run without credentials.
type builder func(ctx context.Context) (*app.App, error)

type cli struct {
	out   io.Writer
	build builder
	app   *app.App
}

func (c *cli) service(ctx context.Context) (*pipeline.Service, error) {
	if c.app == nil {
		a, err := c.build(ctx)
		if err != nil {
			return nil, err
		}
		c.app = a
	}
	return c.app.Service, nil
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	return c.app.Close()
}

// newRootCmd returns the command tree and a function releasing whatever
// the commands opened.
func newRootCmd(out io.Writer, build builder) (*cobra.Command, func() error) {
	c := &cli{out: out, build: build}
	root := &cobra.Command{
		Use:           "evalctl",
		Short:         "Evaluate journal feedback with the judge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.AddCommand(
		c.evaluateCmd(),
		c.transcriptCmd(),
		c.batchCmd(),
		c.calibrateCmd(),
		c.summaryCmd(),
		c.regressionsCmd(),
		c.taxonomyCmd(),
		c.schemaCmd(),
		c.sampleCmd(),
	)
	return root, c.close
}

func (c *cli) evaluateCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "evaluate <entry-id>",
		Short: "Evaluate one entry's feedback",
		Long: `Evaluate one entry's feedback and print the result as JSON.

The latest stored evaluation is printed unless --force is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service(cmd.Context())
			if err != nil {
				return err
			}
			ev, err := svc.Evaluate(cmd.Context(), args[0], force)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.out)
			enc.SetIndent("", "  ")
			return enc.Encode(ev)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "evaluate again even when a stored result exists")
	return cmd
}

func (c *cli) transcriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcript <entry-id>",
		Short: "Print the transcript the judge would see",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.service(cmd.Context())
			if err != nil {
				return err
			}
			t, err := svc.Transcript(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.out, t)
			return err
		},
	}
}

func (c *cli) batchCmd() *cobra.Command {
	var (
		mode   string
		limit  int
		failOn []string
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Re-evaluate recent or random entries",
		Long: `Re-evaluate a batch of entries and print a table of the results.

Entries whose verdict is listed in --fail-on count as failures, as do
entries whose judge answer could not be parsed or validated. The command
exits non-zero when any failure is reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := pipeline.BatchOptions{Mode: pipeline.BatchMode(mode), Limit: limit}
			verdicts, err := parseVerdicts(failOn)
			if err != nil {
				return err
			}
			opts.FailOn = verdicts

			svc, err := c.service(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := svc.Batch(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if err := report.Batch(c.out, rep); err != nil {
				return err
			}
			if rep.Failed() {
				return errFailures
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(pipeline.BatchRecent), "entry selection: recent or random")
	cmd.Flags().IntVar(&limit, "limit", pipeline.DefaultBatchLimit, "number of entries to evaluate")
	cmd.Flags().StringSliceVar(&failOn, "fail-on", nil, "verdicts that count as failures (pass, flag, fail)")
	return cmd
}

func (c *cli) calibrateCmd() *cobra.Command {
	var (
		file   string
		repair bool
	)
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Judge golden cases and compare with expectations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			suite, err := pipeline.LoadCalibration(file)
			if err != nil {
				return err
			}
			svc, err := c.service(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := svc.Calibrate(cmd.Context(), suite, pipeline.CalibrateOptions{RepairEvidence: repair})
			if err != nil {
				return err
			}
			if err := report.Calibration(c.out, rep); err != nil {
				return err
			}
			if rep.Failed() {
				return errFailures
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "calibration.json", "calibration suite")
	cmd.Flags().BoolVar(&repair, "repair-evidence", false, "replace unquotable evidence before scoring")
	return cmd
}

func (c *cli) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Summarize every stored evaluation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.service(cmd.Context())
			if err != nil {
				return err
			}
			sum, err := svc.Summary(cmd.Context())
			if err != nil {
				return err
			}
			return report.Summary(c.out, sum)
		},
	}
}

func (c *cli) regressionsCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "regressions",
		Short: "Compare two prompt versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.service(cmd.Context())
			if err != nil {
				return err
			}
			reg, err := svc.Regressions(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			return report.Regression(c.out, reg)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "baseline prompt version")
	cmd.Flags().StringVar(&to, "to", "", "candidate prompt version")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (c *cli) taxonomyCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Print the violation taxonomy",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			tax := taxonomy.Default()
			if file != "" {
				var err error
				if tax, err = app.LoadTaxonomy(file); err != nil {
					return err
				}
			}
			return report.Taxonomy(c.out, tax)
		},
	}
	cmd.Flags().StringVar(&file, "taxonomy", "", "taxonomy YAML file (default: built-in)")
	return cmd
}

// schemaCmd prints the result schema rubric files should reference.
func (c *cli) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of a judge result",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			doc, err := schema.Document[judge.Result]()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.out, doc)
			return err
		},
	}
}

func (c *cli) sampleCmd() *cobra.Command {
	var failOn []string
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Seed sample entries, reflect on them and evaluate the feedback",
		Long: `Create the built-in sample entries, run every agent over them, judge
the feedback, and print a table of the results.

Each run creates new entries. Failures are counted as in batch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			verdicts, err := parseVerdicts(failOn)
			if err != nil {
				return err
			}
			svc, err := c.service(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := svc.Sample(cmd.Context(), pipeline.SampleEntries, verdicts)
			if err != nil {
				return err
			}
			if err := report.Batch(c.out, rep); err != nil {
				return err
			}
			if rep.Failed() {
				return errFailures
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&failOn, "fail-on", nil, "verdicts that count as failures (pass, flag, fail)")
	return cmd
}

func parseVerdicts(raw []string) ([]judge.Verdict, error) {
	out := make([]judge.Verdict, 0, len(raw))
	for _, r := range raw {
		v := judge.Verdict(strings.ToLower(strings.TrimSpace(r)))
		switch v {
		case judge.VerdictPass, judge.VerdictFlag, judge.VerdictFail:
			out = append(out, v)
		case "":
		default:
			return nil, fmt.Errorf("unknown verdict %q in --fail-on", r)
		}
	}
	return out, nil
}
