// Package preflight evaluates whether the host can run extractions: the
// collaborator binaries, directory permissions, and credentials a run needs.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"voxsplit/internal/config"
	"voxsplit/internal/services/demucs"
	"voxsplit/internal/services/pyannote"
)

// Result reports one readiness check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// Requirement defines an external binary the pipeline invokes.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Result {
	results := make([]Result, 0, len(requirements))
	for _, req := range requirements {
		command := strings.TrimSpace(req.Command)
		result := Result{Name: req.Name, Optional: req.Optional}
		if command == "" {
			result.Detail = "command not configured"
			results = append(results, result)
			continue
		}
		if path, err := exec.LookPath(command); err != nil {
			result.Detail = fmt.Sprintf("binary %q not found (%s)", command, req.Description)
		} else {
			result.Passed = true
			result.Detail = path
		}
		results = append(results, result)
	}
	return results
}

// CheckDirectoryAccess verifies that the directory exists and is readable and
// writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// Run evaluates every readiness check for the given configuration. Optional
// checks never make a host unready: the diarization collaborator has the
// energy-based fallback behind it.
func Run(cfg *config.Config) []Result {
	results := CheckBinaries(binaryRequirements(cfg))

	results = append(results,
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	)

	token := Result{Name: "Diarization credential", Optional: true}
	if cfg.Diarization.AuthToken != "" {
		token.Passed = true
		token.Detail = "access token configured"
	} else {
		token.Detail = "no access token; diarization will use the fallback segmenter"
	}
	results = append(results, token)

	return results
}

// binaryRequirements resolves the collaborator commands a run will exec,
// falling back to the same defaults the adapters use.
func binaryRequirements(cfg *config.Config) []Requirement {
	demucsBinary := cfg.Separation.Binary
	if demucsBinary == "" {
		demucsBinary = demucs.DefaultBinary
	}
	diarizeBinary := cfg.Diarization.Binary
	if diarizeBinary == "" {
		diarizeBinary = pyannote.DefaultBinary
	}
	return []Requirement{
		{
			Name:        "Demucs",
			Command:     demucsBinary,
			Description: "required for vocal/music separation",
		},
		{
			Name:        "Diarization collaborator",
			Command:     diarizeBinary,
			Description: "neural speaker diarization; the fallback segmenter is used without it",
			Optional:    true,
		},
	}
}

// Ready reports whether every non-optional check passed.
func Ready(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return false
		}
	}
	return true
}
