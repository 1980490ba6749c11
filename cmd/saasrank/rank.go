package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/saasrank/internal/mcp"
)

// Output formats for rank and status
const (
	outputText = "text"
	outputJSON = "json"
)

func newRankCmd(flags *globalFlags) *cobra.Command {
	var (
		in      mcp.RankInput
		noCache bool
		output  string
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank catalog products for a requirement",
		Long: `Rank the active catalog against a structured requirement and print the
top candidates with their scores and explanations.

Examples:
  saasrank rank --category expense --problem "receipt scanning" --sso
  saasrank rank --category hr --text "onboarding paperwork" --top-k 3 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != outputText && output != outputJSON {
				return fmt.Errorf("unknown output format %q", output)
			}
			if in.TopK < 1 || in.TopK > mcp.MaxTopK {
				return fmt.Errorf("--top-k must be between 1 and %d", mcp.MaxTopK)
			}
			in.UseCache = !noCache

			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.server.RankCandidates(ctx, in)
			if err != nil {
				return err
			}

			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			return writeRankText(cmd.OutOrStdout(), result)
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.Category, "category", "", "business category (accounting, expense, attendance, hr, workflow, e_contract, invoice, procurement)")
	f.StringSliceVar(&in.Problems, "problem", nil, "problem to solve (repeatable)")
	f.StringVar(&in.ProblemFreeText, "text", "", "free-text problem description")
	f.BoolVar(&in.RequireSSO, "sso", false, "require single sign-on")
	f.BoolVar(&in.RequireAuditLog, "audit-log", false, "require an audit log")
	f.StringVar(&in.DataResidency, "residency", "any", "required data residency region")
	f.StringSliceVar(&in.RequiredLanguages, "language", nil, "required UI language (repeatable)")
	f.IntVarP(&in.TopK, "top-k", "k", mcp.DefaultTopK, "number of results")
	f.BoolVar(&noCache, "no-cache", false, "bypass the response cache")
	f.StringVarP(&output, "output", "o", outputText, "output format: text or json")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeRankText(w io.Writer, result *mcp.RankOutput) error {
	fmt.Fprintf(w, "Run %s (%s mode, %d candidates, %d excluded)\n",
		result.RunID, result.Mode, result.TotalCandidates, result.ExcludedCandidates)
	if !result.Degradation.Lexical.Available {
		fmt.Fprintf(w, "Lexical retrieval unavailable: %s\n", result.Degradation.Lexical.Reason)
	}
	if !result.Degradation.Vector.Available {
		fmt.Fprintf(w, "Vector retrieval unavailable: %s\n", result.Degradation.Vector.Reason)
	}
	if len(result.Results) == 0 {
		fmt.Fprintln(w, "No candidates satisfy the requirement.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tCANDIDATE\tNAME\tSUMMARY")
	for _, rc := range result.Results {
		fmt.Fprintf(tw, "%d\t%.1f\t%s\t%s\t%s\n",
			rc.Rank, rc.FinalScore, rc.CandidateID, rc.Name, rc.Explanation.Summary)
	}
	return tw.Flush()
}
