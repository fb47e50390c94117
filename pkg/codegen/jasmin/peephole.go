// Package jasmin - Peephole cleanup of emitted method bodies
// Design: line-window pattern matching; every pattern is stack-neutral so the
// computed limits stay valid
package jasmin

import (
	"strings"

	"github.com/JoaoAMarinho/FEUP-COMP/pkg/logger"
)

// PeepholeOptimizer rewrites short instruction sequences
type PeepholeOptimizer struct {
	patterns []Pattern
}

// Pattern represents an optimization pattern over Size consecutive lines
type Pattern struct {
	Name    string
	Size    int
	Match   func([]string) bool
	Replace func([]string) []string
}

// NewPeepholeOptimizer creates a peephole optimizer with the built-in patterns
func NewPeepholeOptimizer() *PeepholeOptimizer {
	po := &PeepholeOptimizer{
		patterns: make([]Pattern, 0),
	}
	po.registerPatterns()
	return po
}

// Optimize applies peephole optimizations to assembly text
func (po *PeepholeOptimizer) Optimize(assembly string) string {
	lines := strings.Split(assembly, "\n")
	return strings.Join(po.OptimizeLines(lines), "\n")
}

// OptimizeLines applies patterns to assembly lines
func (po *PeepholeOptimizer) OptimizeLines(lines []string) []string {
	result := make([]string, 0, len(lines))
	i := 0

	for i < len(lines) {
		matched := false
		for _, pattern := range po.patterns {
			if i+pattern.Size > len(lines) {
				continue
			}
			window := lines[i : i+pattern.Size]
			if pattern.Match(window) {
				result = append(result, pattern.Replace(window)...)
				i += pattern.Size
				matched = true
				logger.Debug("Applied peephole optimization", "pattern", pattern.Name)
				break
			}
		}

		if !matched {
			result = append(result, lines[i])
			i++
		}
	}

	return result
}

// registerPatterns registers all optimization patterns
func (po *PeepholeOptimizer) registerPatterns() {
	// goto L directly before L:
	po.patterns = append(po.patterns, Pattern{
		Name: "goto_next",
		Size: 2,
		Match: func(lines []string) bool {
			target, ok := gotoTarget(lines[0])
			return ok && labelName(lines[1]) == target
		},
		Replace: func(lines []string) []string {
			return []string{lines[1]}
		},
	})

	// iinc r 0
	po.patterns = append(po.patterns, Pattern{
		Name: "iinc_zero",
		Size: 1,
		Match: func(lines []string) bool {
			fields := strings.Fields(lines[0])
			return len(fields) == 3 && fields[0] == "iinc" && fields[2] == "0"
		},
		Replace: func(lines []string) []string {
			return []string{}
		},
	})
}

func gotoTarget(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) == 2 && fields[0] == "goto" {
		return fields[1], true
	}
	return "", false
}

func labelName(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasSuffix(line, ":") {
		return strings.TrimSuffix(line, ":")
	}
	return ""
}
