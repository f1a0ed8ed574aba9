package tools

import "sort"

// DefaultTools are registered by RegisterDefaults when their executables
// are present.
var DefaultTools = []Registration{
	{
		Name:            "nmap",
		CommandTemplate: "nmap -sV -sC {input} -oX {output}",
		Description:     "Network discovery and service/version detection",
		InputMode:       InputTarget,
		OutputMode:      OutputXML,
	},
	{
		Name:            "nuclei",
		CommandTemplate: "nuclei -u {input} -jsonl -o {output}",
		Description:     "Template based vulnerability scanner",
		InputMode:       InputURL,
		OutputMode:      OutputJSONL,
	},
	{
		Name:            "nikto",
		CommandTemplate: "nikto -h {input} -o {output} -Format json",
		Description:     "Web server misconfiguration scanner",
		InputMode:       InputTarget,
		OutputMode:      OutputJSON,
	},
	{
		Name:            "gobuster",
		CommandTemplate: "gobuster dir -u {input} -w /usr/share/wordlists/dirb/common.txt -o {output}",
		Description:     "Directory and file brute forcer",
		InputMode:       InputURL,
		OutputMode:      OutputText,
	},
	{
		Name:            "sqlmap",
		CommandTemplate: "sqlmap -u {input} --batch --output-dir={output}",
		Description:     "SQL injection testing tool",
		InputMode:       InputURL,
		OutputMode:      OutputDirectory,
	},
	{
		Name:            "gitleaks",
		CommandTemplate: "gitleaks detect --source {input} --report-format json --report-path {output}",
		Description:     "Secret scanner for git repositories and directories",
		InputMode:       InputFile,
		OutputMode:      OutputJSON,
	},
}

// RegisterDefaults registers the built-in tools whose executables resolve.
// Existing registrations are left untouched. It returns the names added.
func (r *Registry) RegisterDefaults(resolver *Resolver) ([]string, error) {
	if resolver == nil {
		resolver = DefaultResolver()
	}
	var added []string
	for _, def := range DefaultTools {
		if _, err := r.Get(def.Name); err == nil {
			continue
		}
		argv, err := def.Argv()
		if err != nil {
			return added, err
		}
		if !resolver.Available(argv[0]) {
			r.logger.Debug("default tool not installed, skipping", "name", def.Name)
			continue
		}
		if err := r.Register(def); err != nil {
			return added, err
		}
		added = append(added, def.Name)
	}
	return added, nil
}

type ToolStatus struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Command     string `json:"command"`
	Available   bool   `json:"available"`
	Path        string `json:"path,omitempty"`
}

type Status struct {
	Total     int          `json:"total_tools"`
	Available int          `json:"available_tools"`
	Missing   []string     `json:"missing_tools"`
	Tools     []ToolStatus `json:"tools"`
}

// Status reports which registered tools can currently be executed.
func (r *Registry) Status(resolver *Resolver) Status {
	if resolver == nil {
		resolver = DefaultResolver()
	}
	list := r.List()
	names := make([]string, 0, len(list))
	for name := range list {
		names = append(names, name)
	}
	sort.Strings(names)

	st := Status{Total: len(names), Missing: []string{}}
	for _, name := range names {
		reg := list[name]
		ts := ToolStatus{Name: name, Description: reg.Description, Command: reg.CommandTemplate}
		if argv, err := reg.Argv(); err == nil {
			if p, _, err := resolver.Resolve(argv[0]); err == nil {
				ts.Available = true
				ts.Path = p
			}
		}
		if ts.Available {
			st.Available++
		} else {
			st.Missing = append(st.Missing, name)
		}
		st.Tools = append(st.Tools, ts)
	}
	return st
}
