package benchpipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// modFuncnameRegex strips per-compilation uniqueness from mangled symbol
// names before cg_annotate renders them, e.g.
// _ZN9hashbrown3raw21RawTable$LT$T$C$A$GT$14reserve_rehash17hc60392f3f3eac4b2E.llvm.9716880419886440089
// becomes
// _ZN9hashbrown3raw21RawTable$LT$T$C$A$GT$14reserve_rehashE
const modFuncnameRegex = `--mod-funcname=s/17h[0-9a-f]+E\.llvm\.\d+/E/`

// cachegrindDiff produces a human-readable instruction-level diff between
// the baseline and candidate cachegrind profiles for one scenario by piping
// cg_diff's binary diff through cg_annotate. Either subprocess returning a
// non-zero exit aborts the comparison.
func cachegrindDiff(ctx context.Context, baselineDir, candidateDir, scenario string) (string, error) {
	tmp, err := os.CreateTemp("", "ci-bench-cg-diff-*")
	if err != nil {
		return "", fmt.Errorf("cannot create temp file for cg_diff: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	cgDiff := exec.CommandContext(ctx, "cg_diff",
		modFuncnameRegex,
		filepath.Join(baselineDir, scenario),
		filepath.Join(candidateDir, scenario),
	)
	cgDiff.Stdout = tmp
	if err := cgDiff.Run(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("cg_diff failed for scenario %s: %w", scenario, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("cannot finalize cg_diff output for scenario %s: %w", scenario, err)
	}

	cgAnnotate := exec.CommandContext(ctx, "cg_annotate", tmpPath, "--auto=no")
	out, err := cgAnnotate.Output()
	if err != nil {
		return "", fmt.Errorf("cg_annotate failed for scenario %s: %w", scenario, err)
	}

	return string(out), nil
}
