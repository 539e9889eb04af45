package compiler

// File is the top-level shape of a module description file.
type File struct {
	Module ModuleDesc `yaml:"module" json:"module"`
}

// ModuleDesc is the text description of a module.
type ModuleDesc struct {
	Name      string         `yaml:"name" json:"name"`
	Globals   []GlobalDesc   `yaml:"globals,omitempty" json:"globals,omitempty"`
	Functions []FunctionDesc `yaml:"functions" json:"functions"`
}

// GlobalDesc describes one global variable.
type GlobalDesc struct {
	Type    string `yaml:"type" json:"type"`
	Mutable bool   `yaml:"mutable,omitempty" json:"mutable,omitempty"`
}

// FunctionDesc describes one function. Body entries are text format
// instructions; the function's final end is implicit.
type FunctionDesc struct {
	Name    string   `yaml:"name" json:"name"`
	Params  []string `yaml:"params,omitempty" json:"params,omitempty"`
	Results []string `yaml:"results,omitempty" json:"results,omitempty"`
	Locals  []string `yaml:"locals,omitempty" json:"locals,omitempty"`
	Body    []string `yaml:"body" json:"body"`
}
