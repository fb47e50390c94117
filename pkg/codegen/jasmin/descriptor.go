// Package jasmin - Type descriptors and class file versions
package jasmin

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/JoaoAMarinho/FEUP-COMP/pkg/ir"
)

const objectClass = "java/lang/Object"

// classNames maps simple class names to their qualified slash form
type classNames map[string]string

func newClassNames(class *ir.ClassUnit) classNames {
	names := make(classNames, len(class.Imports)+1)
	for _, imp := range class.Imports {
		parts := strings.FieldsFunc(imp, func(r rune) bool { return r == '.' || r == '/' })
		if len(parts) == 0 {
			continue
		}
		names[parts[len(parts)-1]] = strings.Join(parts, "/")
	}
	names[class.Name] = class.Name
	return names
}

// qualify returns the qualified name of a class, or the name itself
func (n classNames) qualify(name string) string {
	if q, ok := n[name]; ok {
		return q
	}
	return name
}

// descriptor returns the JVM field descriptor of a type
func (n classNames) descriptor(t ir.Type) (string, error) {
	switch t.Kind {
	case ir.Int32:
		return "I", nil
	case ir.Boolean:
		return "Z", nil
	case ir.String:
		return "Ljava/lang/String;", nil
	case ir.Void:
		return "V", nil
	case ir.Class, ir.This:
		if t.Class == "" {
			return "", fmt.Errorf("%w: class type without a name", ErrUnsupported)
		}
		return "L" + n.qualify(t.Class) + ";", nil
	case ir.Array:
		if t.Elem == ir.Array || t.Elem == ir.Void {
			return "", fmt.Errorf("%w: array of %s", ErrUnsupported, t.ElemType())
		}
		elem, err := n.descriptor(t.ElemType())
		if err != nil {
			return "", err
		}
		return "[" + elem, nil
	}
	return "", fmt.Errorf("%w: type kind %d", ErrUnsupported, t.Kind)
}

// methodDescriptor returns (params)ret
func (n classNames) methodDescriptor(params []ir.Type, ret ir.Type) (string, error) {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range params {
		d, err := n.descriptor(p)
		if err != nil {
			return "", err
		}
		sb.WriteString(d)
	}
	sb.WriteByte(')')
	d, err := n.descriptor(ret)
	if err != nil {
		return "", err
	}
	sb.WriteString(d)
	return sb.String(), nil
}

// supportedTargets bounds the Java versions a .bytecode header may name
var supportedTargets = mustConstraint(">= 5")

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}

// ClassFileVersion turns a Java version such as "1.8", "11" or "17.0.2" into
// the major.minor class file version for the .bytecode directive
func ClassFileVersion(target string) (string, error) {
	v, err := semver.NewVersion(target)
	if err != nil {
		return "", fmt.Errorf("invalid target %q: %w", target, err)
	}

	// 1.x releases are Java x
	java := v.Major()
	if java == 1 {
		java = v.Minor()
	}
	normalized, err := semver.NewVersion(fmt.Sprint(java))
	if err != nil {
		return "", fmt.Errorf("invalid target %q: %w", target, err)
	}
	if !supportedTargets.Check(normalized) {
		return "", fmt.Errorf("%w: target %s", ErrUnsupported, target)
	}
	return fmt.Sprintf("%d.0", 44+java), nil
}
