package job

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/odpf/hpcjob/internal/errors"
)

const (
	ModuleLoad   = "load"
	ModuleUnload = "unload"

	// swap actions are stored as "swap:<replacement>"
	modulePrefixSwap = "swap:"
)

type Directive struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ScriptSpec is the scheduler script of a job: header directives, module operations,
// environment and the execution block. Every instance owns its own slices.
type ScriptSpec struct {
	ExecutionBlock string            `json:"execution_block"`
	Directives     []Directive       `json:"directives"`
	Modules        map[string]string `json:"modules"`
	EnvVars        []EnvVar          `json:"env_vars"`
	ArrayIndices   []int             `json:"array_indices,omitempty"`
}

func NewScriptSpec(executionBlock string) *ScriptSpec {
	return &ScriptSpec{
		ExecutionBlock: executionBlock,
		Directives:     []Directive{},
		Modules:        map[string]string{},
		EnvVars:        []EnvVar{},
	}
}

// SetDirective appends a directive; the same key may appear more than once.
func (s *ScriptSpec) SetDirective(key, value string) {
	s.Directives = append(s.Directives, Directive{Key: key, Value: value})
}

// Directive returns the value of the first directive with the given key.
func (s *ScriptSpec) Directive(key string) (string, bool) {
	for _, d := range s.Directives {
		if d.Key == key {
			return d.Value, true
		}
	}
	return "", false
}

func (s *ScriptSpec) LoadModule(name string) {
	s.modules()[name] = ModuleLoad
}

func (s *ScriptSpec) UnloadModule(name string) {
	s.modules()[name] = ModuleUnload
}

func (s *ScriptSpec) SwapModule(from, to string) {
	s.modules()[from] = modulePrefixSwap + to
}

func (s *ScriptSpec) modules() map[string]string {
	if s.Modules == nil {
		s.Modules = map[string]string{}
	}
	return s.Modules
}

// SetEnvVar overrides a variable in place, keeping its position, or appends it.
func (s *ScriptSpec) SetEnvVar(name, value string) {
	for i := range s.EnvVars {
		if s.EnvVars[i].Name == name {
			s.EnvVars[i].Value = value
			return
		}
	}
	s.EnvVars = append(s.EnvVars, EnvVar{Name: name, Value: value})
}

func (s *ScriptSpec) EnvVar(name string) (string, bool) {
	for _, e := range s.EnvVars {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

// Clone returns a deep copy.
func (s *ScriptSpec) Clone() *ScriptSpec {
	if s == nil {
		return nil
	}
	c := NewScriptSpec(s.ExecutionBlock)
	c.Directives = append(c.Directives, s.Directives...)
	for k, v := range s.Modules {
		c.Modules[k] = v
	}
	c.EnvVars = append(c.EnvVars, s.EnvVars...)
	if s.ArrayIndices != nil {
		c.ArrayIndices = append([]int{}, s.ArrayIndices...)
	}
	return c
}

type moduleCommand struct {
	Action string
	Args   string
}

func (s *ScriptSpec) moduleCommands() []moduleCommand {
	names := make([]string, 0, len(s.Modules))
	for name := range s.Modules {
		names = append(names, name)
	}
	sort.Strings(names)

	var commands []moduleCommand
	for _, name := range names {
		action := s.Modules[name]
		switch {
		case strings.HasPrefix(action, modulePrefixSwap):
			commands = append(commands, moduleCommand{Action: "swap", Args: name + " " + strings.TrimPrefix(action, modulePrefixSwap)})
		case action == ModuleUnload:
			commands = append(commands, moduleCommand{Action: ModuleUnload, Args: name})
		default:
			commands = append(commands, moduleCommand{Action: ModuleLoad, Args: name})
		}
	}
	return commands
}

const scriptTemplate = `#!/bin/bash
## Required PBS Directives --------------------------------
#PBS -N {{ .Name | trunc 15 }}
#PBS -A {{ .Placement.ProjectID }}
#PBS -q {{ .Placement.Queue }}
#PBS -l select={{ .Placement.NodeCount }}:ncpus={{ .Placement.ProcessesPerNode }}
#PBS -l walltime={{ .Walltime }}
{{- if .ArrayIndices }}
#PBS -J {{ .ArrayIndices }}
{{- end }}

## Optional Directives -----------------------------------
{{- range .Directives }}
#PBS {{ .Key }} {{ .Value }}
{{- end }}

## Modules --------------------------------------
{{- range .Modules }}
module {{ .Action }} {{ .Args }}
{{- end }}

## Environment Variables ---------------------------------
{{- range .EnvVars }}
export {{ .Name }}={{ .Value }}
{{- end }}

## Execution Block ----------------------------------------
{{ .ExecutionBlock }}
{{- if .HomeOutput }}

## Transfer Home Output ----------------------------------
mkdir -p {{ .HomeDir }}
{{- range .HomeOutput }}
cp -r {{ . }} {{ $.HomeDir }}/
{{- end }}
{{- end }}
{{- if .ArchiveOutput }}

## Transfer Archive Output -------------------------------
archive mkdir -p {{ .ArchiveDir }}
{{- range .ArchiveOutput }}
archive put -p -C {{ $.ArchiveDir }} {{ . }}
{{- end }}
{{- end }}
`

var compiledScript = template.Must(template.New("pbs").Funcs(sprig.TxtFuncMap()).Parse(scriptTemplate))

// Render produces the scheduler script text submitted for the job.
func (s *ScriptSpec) Render(j *Job) (string, error) {
	data := struct {
		Name           string
		Placement      Placement
		Walltime       string
		ArrayIndices   string
		Directives     []Directive
		Modules        []moduleCommand
		EnvVars        []EnvVar
		ExecutionBlock string
		HomeDir        string
		HomeOutput     []string
		ArchiveDir     string
		ArchiveOutput  []string
	}{
		Name:           j.Name,
		Placement:      j.Placement,
		Walltime:       FormatWalltime(j.MaxTime),
		ArrayIndices:   formatArrayIndices(s.ArrayIndices),
		Directives:     s.Directives,
		Modules:        s.moduleCommands(),
		EnvVars:        s.EnvVars,
		ExecutionBlock: s.ExecutionBlock,
	}
	// output transfers need the remote directories, which are only known once resolved
	if j.Workspace.IsResolved() {
		data.HomeDir, data.HomeOutput = j.Workspace.HomeDir, j.Files.HomeOutput
		data.ArchiveDir, data.ArchiveOutput = j.Workspace.ArchiveDir, j.Files.ArchiveOutput
	}

	var buf bytes.Buffer
	if err := compiledScript.Execute(&buf, data); err != nil {
		return "", errors.InternalError(EntityJob, "unable to render script for "+j.Name, err)
	}
	return buf.String(), nil
}

// FormatWalltime renders a duration as HH:MM:SS, hours unbounded.
func FormatWalltime(d time.Duration) string {
	total := int64(d.Round(time.Second) / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// formatArrayIndices renders contiguous indices as a PBS range, otherwise a comma list.
func formatArrayIndices(indices []int) string {
	if len(indices) == 0 {
		return ""
	}
	contiguous := true
	for i := 1; i < len(indices); i++ {
		if indices[i] != indices[i-1]+1 {
			contiguous = false
			break
		}
	}
	if contiguous && len(indices) > 1 {
		return fmt.Sprintf("%d-%d", indices[0], indices[len(indices)-1])
	}
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = fmt.Sprint(idx)
	}
	return strings.Join(parts, ",")
}
