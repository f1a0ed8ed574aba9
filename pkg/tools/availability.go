package tools

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Resolution is the outcome of one strategy for one executable.
type Resolution struct {
	Strategy string
	Path     string
	Err      error
}

func (r Resolution) OK() bool { return r.Err == nil && r.Path != "" }

// Strategy locates an executable one particular way.
type Strategy interface {
	Name() string
	Resolve(executable string) Resolution
}

// PathLookup searches $PATH, or checks the file directly when the
// executable already contains a path separator.
type PathLookup struct{}

func (PathLookup) Name() string { return "path" }

func (s PathLookup) Resolve(executable string) Resolution {
	p, err := exec.LookPath(executable)
	if err != nil {
		return Resolution{Strategy: s.Name(), Err: err}
	}
	return Resolution{Strategy: s.Name(), Path: p}
}

// AlternativeLocations checks well-known install directories that are
// often missing from a non-login PATH.
type AlternativeLocations struct {
	Dirs []string
}

func DefaultAlternativeLocations() AlternativeLocations {
	dirs := []string{"/usr/local/bin", "/usr/bin", "/snap/bin", "/opt/homebrew/bin"}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, "go", "bin"), filepath.Join(home, ".local", "bin"))
	}
	if gopath := os.Getenv("GOPATH"); gopath != "" {
		dirs = append(dirs, filepath.Join(gopath, "bin"))
	}
	return AlternativeLocations{Dirs: dirs}
}

func (AlternativeLocations) Name() string { return "alternative-locations" }

func (s AlternativeLocations) Resolve(executable string) Resolution {
	res := Resolution{Strategy: s.Name()}
	if strings.ContainsRune(executable, filepath.Separator) {
		res.Err = fmt.Errorf("%s is a path, not a bare name", executable)
		return res
	}
	candidates := make([]string, 0, len(s.Dirs)+1)
	for _, dir := range s.Dirs {
		candidates = append(candidates, filepath.Join(dir, executable))
	}
	candidates = append(candidates, filepath.Join("/opt", executable, executable))

	for _, c := range candidates {
		if isExecutable(c) {
			res.Path = c
			return res
		}
	}
	res.Err = fmt.Errorf("not in %d known locations", len(candidates))
	return res
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}

// Resolver tries strategies in order and stops at the first success.
type Resolver struct {
	strategies []Strategy
}

func NewResolver(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

func DefaultResolver() *Resolver {
	return NewResolver(PathLookup{}, DefaultAlternativeLocations())
}

// Resolve returns the executable path and every attempt made. The error
// wraps ErrNotFound when all strategies fail.
func (r *Resolver) Resolve(executable string) (string, []Resolution, error) {
	var attempts []Resolution
	for _, s := range r.strategies {
		res := s.Resolve(executable)
		attempts = append(attempts, res)
		if res.OK() {
			return res.Path, attempts, nil
		}
	}
	var errs []error
	for _, a := range attempts {
		errs = append(errs, fmt.Errorf("%s: %w", a.Strategy, a.Err))
	}
	return "", attempts, fmt.Errorf("%s: %w: %w", executable, ErrNotFound, errors.Join(errs...))
}

// Available reports whether executable resolves.
func (r *Resolver) Available(executable string) bool {
	_, _, err := r.Resolve(executable)
	return err == nil
}

var installGuides = map[string]string{
	"nmap":     "sudo apt-get install -y nmap  |  brew install nmap",
	"nuclei":   "go install -v github.com/projectdiscovery/nuclei/v3/cmd/nuclei@latest  |  brew install nuclei",
	"nikto":    "sudo apt-get install -y nikto  |  brew install nikto",
	"gobuster": "sudo apt-get install -y gobuster  |  go install github.com/OJ/gobuster/v3@latest",
	"sqlmap":   "sudo apt-get install -y sqlmap  |  brew install sqlmap",
	"gitleaks": "brew install gitleaks  |  go install github.com/zricethezav/gitleaks/v8@latest",
	"lynis":    "sudo apt-get install -y lynis  |  brew install lynis",
}

// InstallGuidance returns human readable install instructions.
func InstallGuidance(executable string) string {
	base := filepath.Base(executable)
	var b strings.Builder
	fmt.Fprintf(&b, "'%s' is not installed or not on PATH.\n", base)
	if guide, ok := installGuides[base]; ok {
		fmt.Fprintf(&b, "Install it with: %s\n", guide)
	} else {
		fmt.Fprintf(&b, "Install it with your package manager (apt, brew, snap) or from its official documentation.\n")
	}
	b.WriteString("Then make sure the binary is on PATH and run the command again.")
	return b.String()
}
