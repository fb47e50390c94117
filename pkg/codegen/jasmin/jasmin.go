// Package jasmin implements JVM assembly generation in the Jasmin dialect.
//
// Design: one pass per method over the OLLIR instructions with exact operand
// stack bookkeeping, so .limit stack is known without a second analysis.
// Comparisons and boolean operators become compare-and-branch sequences.
package jasmin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JoaoAMarinho/FEUP-COMP/pkg/ir"
	"github.com/JoaoAMarinho/FEUP-COMP/pkg/logger"
)

var ErrUnsupported = errors.New("unsupported construct")

// Config holds generator options
type Config struct {
	Target   string // Java version for the .bytecode directive, empty to omit it
	Peephole bool
}

// Generator generates Jasmin assembly for lowered classes
type Generator struct {
	cfg       Config
	peephole  *PeepholeOptimizer
	validator *Validator
}

func NewGenerator(cfg Config) *Generator {
	g := &Generator{cfg: cfg}
	if cfg.Peephole {
		g.peephole = NewPeepholeOptimizer()
	}
	return g
}

// Generate emits a class. Methods without a var table get one built.
func (g *Generator) Generate(class *ir.ClassUnit) (string, error) {
	logger.Debug("Generating Jasmin assembly", "class", class.Name, "methods", len(class.Methods))

	names := newClassNames(class)
	super := objectClass
	if class.Super != "" {
		super = names.qualify(class.Super)
	}

	var sb strings.Builder
	if g.cfg.Target != "" {
		version, err := ClassFileVersion(g.cfg.Target)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, ".bytecode %s\n", version)
	}
	fmt.Fprintf(&sb, ".class public %s\n", class.Name)
	fmt.Fprintf(&sb, ".super %s\n\n", super)

	for _, f := range class.Fields {
		desc, err := names.descriptor(f.Type)
		if err != nil {
			return "", fmt.Errorf("field %s: %w", f.Name, err)
		}
		fmt.Fprintf(&sb, ".field private %s %s\n", f.Name, desc)
	}
	if len(class.Fields) > 0 {
		sb.WriteString("\n")
	}

	hasConstructor := false
	for _, m := range class.Methods {
		if m.Name == "<init>" {
			hasConstructor = true
		}
		logger.Debug("Generating method assembly", "class", class.Name, "name", m.Name)
		lines, err := g.generateMethod(class, names, super, m)
		if err != nil {
			logger.Error("Failed to generate method", "class", class.Name, "name", m.Name, "error", err)
			return "", fmt.Errorf("method %s: %w", m.Name, err)
		}
		for _, line := range lines {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
		sb.WriteString("\n")
	}

	if !hasConstructor {
		sb.WriteString(defaultConstructor(super))
	}

	logger.Info("Jasmin generation complete", "class", class.Name, "methods", len(class.Methods))
	return sb.String(), nil
}

// GenerateWithValidation generates and validates assembly
func (g *Generator) GenerateWithValidation(class *ir.ClassUnit) (string, error) {
	assembly, err := g.Generate(class)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	if g.validator == nil {
		g.validator = NewValidator()
	}
	if err := g.validator.Validate(assembly); err != nil {
		logger.Error("Assembly validation failed", "class", class.Name, "error", err)
		return assembly, fmt.Errorf("validation failed: %w", err)
	}

	logger.Info("Assembly generated and validated successfully", "class", class.Name)
	return assembly, nil
}

func (g *Generator) generateMethod(class *ir.ClassUnit, names classNames, super string, m *ir.Method) ([]string, error) {
	if m.VarTable == nil {
		ir.BuildVarTable(m)
	}

	params := make([]ir.Type, len(m.Params))
	for i, p := range m.Params {
		params[i] = p.Type
	}
	desc, err := names.methodDescriptor(params, m.ReturnType)
	if err != nil {
		return nil, err
	}

	e := newMethodEmitter(class, names, super, m)
	if err := e.emitBody(); err != nil {
		return nil, err
	}
	body := e.lines
	if g.peephole != nil {
		body = g.peephole.OptimizeLines(body)
	}

	header := ".method public "
	if m.IsStatic {
		header += "static "
	}
	header += m.Name + desc

	locals := localsLimit(m)
	logger.LogCodeGen(class.Name, m.Name, e.stack.max, locals)

	lines := make([]string, 0, len(body)+4)
	lines = append(lines, header,
		fmt.Sprintf("\t.limit stack %d", e.stack.max),
		fmt.Sprintf("\t.limit locals %d", locals))
	lines = append(lines, body...)
	lines = append(lines, ".end method")
	return lines, nil
}

// localsLimit is one past the highest register in the var table
func localsLimit(m *ir.Method) int {
	n := 0
	if !m.IsStatic {
		n = 1
	}
	for _, d := range m.VarTable {
		if d.Register+1 > n {
			n = d.Register + 1
		}
	}
	return n
}

func defaultConstructor(super string) string {
	return ".method public <init>()V\n" +
		"\t.limit stack 1\n" +
		"\t.limit locals 1\n" +
		"\taload_0\n" +
		"\tinvokespecial " + super + "/<init>()V\n" +
		"\treturn\n" +
		".end method\n"
}
