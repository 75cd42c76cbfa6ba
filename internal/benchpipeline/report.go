package benchpipeline

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/aochagavia/ci-bench-runner/internal/interfaces"
	"github.com/aochagavia/ci-bench-runner/internal/models"
)

// maxCommentLength is the platform ceiling a rendered comment is truncated
// to before being posted.
const maxCommentLength = 65536

const truncationNotice = "\n\n_[comment truncated]_"

// splitOnThreshold partitions diffs into significant (|diff_ratio| >=
// threshold) and negligible, each sorted by diff_ratio descending.
func splitOnThreshold(diffs []models.ScenarioDiff) (significant, negligible []models.ScenarioDiff) {
	for _, d := range diffs {
		ratio := d.DiffRatio()
		if ratio < 0 {
			ratio = -ratio
		}
		if ratio >= d.Threshold {
			significant = append(significant, d)
		} else {
			negligible = append(negligible, d)
		}
	}

	byRatioDesc := func(s []models.ScenarioDiff) func(i, j int) bool {
		return func(i, j int) bool { return s[i].DiffRatio() > s[j].DiffRatio() }
	}
	sort.SliceStable(significant, byRatioDesc(significant))
	sort.SliceStable(negligible, byRatioDesc(negligible))
	return significant, negligible
}

// renderTable writes diffs as a markdown table. emojiFeedback controls
// whether each row is annotated with a warning/check emoji depending on
// whether the candidate regressed or improved.
func renderTable(s *strings.Builder, diffs []models.ScenarioDiff, cachegrindDiffURL string, emojiFeedback bool) {
	s.WriteString("| Scenario | Baseline | Candidate | Diff | Threshold |\n")
	s.WriteString("| --- | ---: | ---: | ---: | ---: |\n")
	for _, d := range diffs {
		emoji := ""
		if emojiFeedback {
			switch {
			case d.Diff() > 0:
				emoji = "⚠️ "
			case d.Diff() < 0:
				emoji = "✅ "
			}
		}
		url := fmt.Sprintf("%s/%s", cachegrindDiffURL, d.ScenarioName)
		fmt.Fprintf(s, "| %s | %v | %v | %s[%.2f](%s) (%.2f%%) | %.2f%% |\n",
			d.ScenarioName, d.Baseline, d.Candidate, emoji, d.Diff(), url, d.DiffRatio()*100, d.Threshold*100)
	}
}

// renderReport renders the successful-comparison markdown report (§4.7).
func renderReport(result *models.ComparisonResult, cachegrindDiffURL string) string {
	significant, negligible := splitOnThreshold(result.Diffs)

	var s strings.Builder
	s.WriteString("# Benchmark results\n")

	if len(result.ScenariosMissingBaseline) > 0 {
		s.WriteString("### ⚠️ Warning: missing benchmarks\n\n")
		s.WriteString("The following benchmark scenarios are present in the candidate but not in the baseline:\n\n")
		for _, scenario := range result.ScenariosMissingBaseline {
			fmt.Fprintf(&s, "* %s\n", scenario)
		}
	}

	s.WriteString("## Significant instruction count differences\n")
	if len(significant) == 0 {
		s.WriteString("_There are no significant instruction count differences_\n")
	} else {
		renderTable(&s, significant, cachegrindDiffURL, true)
	}

	s.WriteString("## Other instruction count differences\n")
	if len(negligible) == 0 {
		s.WriteString("_There are no other instruction count differences_\n")
	} else {
		s.WriteString("<details>\n<summary>Click to expand</summary>\n\n")
		renderTable(&s, negligible, cachegrindDiffURL, false)
		s.WriteString("</details>\n\n")
	}

	return s.String()
}

// renderCheckoutDetails renders the repo/branch/commit descriptors for both
// sides, appended to the comment on every outcome.
func renderCheckoutDetails(branches models.RevisionPair) string {
	var s strings.Builder
	fmt.Fprintf(&s, "- Base repo: %s\n", branches.Baseline.CloneURL)
	fmt.Fprintf(&s, "- Base branch: %s (%s)\n", branches.Baseline.Branch, branches.Baseline.CommitSHA)
	fmt.Fprintf(&s, "- Candidate repo: %s\n", branches.Candidate.CloneURL)
	fmt.Fprintf(&s, "- Candidate branch: %s (%s)\n", branches.Candidate.Branch, branches.Candidate.CommitSHA)
	return s.String()
}

// renderLogsForRun renders one side's accumulated command captures, or a
// placeholder when none were recorded.
func renderLogsForRun(s *strings.Builder, logs []interfaces.LogEntry) {
	if len(logs) == 0 {
		s.WriteString("_Not available_\n")
	}
	for _, log := range logs {
		renderLogPart(s, "command", log.Command)
		renderLogPart(s, "cwd", log.Cwd)
		renderLogPart(s, "stdout", log.Stdout)
		renderLogPart(s, "stderr", log.Stderr)
	}
}

func renderLogPart(s *strings.Builder, partName, part string) {
	fmt.Fprintf(s, "%s:", partName)
	trimmed := strings.TrimRight(part, " \t\r\n")
	if strings.TrimSpace(part) == "" {
		s.WriteString(" _empty_.\n\n")
	} else {
		fmt.Fprintf(s, "\n```\n%s\n```\n\n", trimmed)
	}
}

// renderLogsDigest renders the aggregated logs.md content for both sides,
// candidate first, matching the order the original implementation writes.
func renderLogsDigest(candidate, base []interfaces.LogEntry) string {
	var s strings.Builder
	s.WriteString("### Candidate\n")
	renderLogsForRun(&s, candidate)
	s.WriteString("### Base\n")
	renderLogsForRun(&s, base)
	return s.String()
}

// renderErrorComment renders the comment body for a failed comparison: the
// error cause, checkout details, and the full per-side log digest.
func renderErrorComment(err error, branches models.RevisionPair, candidate, base []interfaces.LogEntry) string {
	var s strings.Builder
	s.WriteString("# Error running benchmarks\n")
	s.WriteString("Cause:\n")
	fmt.Fprintf(&s, "```\n%v\n```\n", err)
	s.WriteString("Checkout details:\n")
	s.WriteString(renderCheckoutDetails(branches))
	s.WriteString("## Logs\n")
	s.WriteString(renderLogsDigest(candidate, base))
	return s.String()
}

// renderSuccessComment renders the comment body for a successful comparison:
// the report followed by checkout details.
func renderSuccessComment(result *models.ComparisonResult, branches models.RevisionPair, cachegrindDiffURL string) string {
	var s strings.Builder
	s.WriteString(renderReport(result, cachegrindDiffURL))
	s.WriteString("### Checkout details\n")
	s.WriteString(renderCheckoutDetails(branches))
	return s.String()
}

// maybeTruncateComment truncates body to the platform comment-length
// ceiling, appending a notice when truncation occurred. The cut point is
// walked back to the nearest rune boundary so a scenario name or captured
// stderr containing multi-byte UTF-8 is never split mid-codepoint.
func maybeTruncateComment(body string) string {
	if len(body) <= maxCommentLength {
		return body
	}
	cut := maxCommentLength - len(truncationNotice)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + truncationNotice
}
