// Package jasmin - Assembly validation and operand stack simulation
package jasmin

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/JoaoAMarinho/FEUP-COMP/pkg/logger"
)

// ValidationError represents an assembly validation error
type ValidationError struct {
	Line    int
	Message string
	Code    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("line %d: %s\n  %s", e.Line, e.Message, e.Code)
}

// MethodReport is what the simulation learned about one method
type MethodReport struct {
	Name        string
	LimitStack  int
	LimitLocals int
	MaxStack    int
}

// Validator checks generated Jasmin text: known opcodes, defined labels,
// closed methods, and an operand stack that never underflows, agrees at
// every join and peaks exactly at .limit stack.
type Validator struct {
	errors  []ValidationError
	warns   []ValidationError
	reports []MethodReport
}

// NewValidator creates a new assembly validator
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
		warns:  make([]ValidationError, 0),
	}
}

type jvmInst struct {
	line   int
	code   string
	opcode string
	args   []string
}

type methodBody struct {
	name        string
	line        int
	limitStack  int
	limitLocals int
	insts       []jvmInst
	labels      map[string]int
}

// Validate parses the assembly and simulates every method
func (v *Validator) Validate(assembly string) error {
	v.errors = v.errors[:0]
	v.warns = v.warns[:0]
	v.reports = v.reports[:0]

	for _, m := range v.parse(strings.Split(assembly, "\n")) {
		v.simulate(m)
	}

	if len(v.errors) > 0 {
		return v.formatErrors()
	}

	if len(v.warns) > 0 {
		v.logWarnings()
	}

	return nil
}

// Reports returns the per-method results of the last Validate call
func (v *Validator) Reports() []MethodReport {
	return v.reports
}

func (v *Validator) parse(lines []string) []*methodBody {
	var methods []*methodBody
	var cur *methodBody

	for i, raw := range lines {
		n := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		fields := strings.Fields(line)

		if cur == nil {
			switch fields[0] {
			case ".class", ".super", ".field", ".bytecode", ".source", ".implements":
			case ".method":
				cur = &methodBody{
					name:        fields[len(fields)-1],
					line:        n,
					limitStack:  -1,
					limitLocals: -1,
					labels:      make(map[string]int),
				}
			default:
				v.addError(n, "unexpected line outside a method", raw)
			}
			continue
		}

		switch {
		case line == ".end method":
			methods = append(methods, cur)
			cur = nil

		case fields[0] == ".limit":
			if len(fields) != 3 {
				v.addError(n, "malformed .limit directive", raw)
				continue
			}
			value, err := strconv.Atoi(fields[2])
			if err != nil || value < 0 {
				v.addError(n, "invalid limit value", raw)
				continue
			}
			switch fields[1] {
			case "stack":
				cur.limitStack = value
			case "locals":
				cur.limitLocals = value
			default:
				v.addError(n, "unknown limit "+fields[1], raw)
			}

		case strings.HasPrefix(line, "."):
			// .line, .var and friends carry no code

		case strings.HasSuffix(line, ":") && len(fields) == 1:
			name := strings.TrimSuffix(line, ":")
			if _, dup := cur.labels[name]; dup {
				v.addError(n, "duplicate label "+name, raw)
			}
			cur.labels[name] = len(cur.insts)

		default:
			if _, known := opcodes[fields[0]]; !known && !regOpcode.MatchString(fields[0]) {
				v.addError(n, "unknown opcode "+fields[0], raw)
				continue
			}
			cur.insts = append(cur.insts, jvmInst{line: n, code: raw, opcode: fields[0], args: fields[1:]})
		}
	}

	if cur != nil {
		v.addError(cur.line, "missing .end method", cur.name)
	}
	return methods
}

// simulate walks every reachable path and tracks the operand stack depth
func (v *Validator) simulate(m *methodBody) {
	if m.limitStack < 0 || m.limitLocals < 0 {
		v.addError(m.line, "missing .limit directive", m.name)
		return
	}

	depth := make([]int, len(m.insts))
	for i := range depth {
		depth[i] = -1
	}
	maxDepth := 0
	ok := true
	var work []int

	enter := func(from jvmInst, to, d int) {
		if to >= len(m.insts) {
			v.addError(from.line, "control falls off the end of "+m.name, from.code)
			ok = false
			return
		}
		switch depth[to] {
		case -1:
			depth[to] = d
			work = append(work, to)
		case d:
		default:
			v.addError(m.insts[to].line, fmt.Sprintf("stack depth %d meets %d", depth[to], d), m.insts[to].code)
			ok = false
		}
	}

	if len(m.insts) == 0 {
		v.addError(m.line, "method without code", m.name)
		return
	}
	depth[0] = 0
	work = append(work, 0)

	for len(work) > 0 && ok {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		inst := m.insts[i]

		pop, push, err := stackEffect(inst)
		if err != nil {
			v.addError(inst.line, err.Error(), inst.code)
			ok = false
			break
		}
		d := depth[i]
		if d < pop {
			v.addError(inst.line, "operand stack underflow", inst.code)
			ok = false
			break
		}
		d = d - pop + push
		if d > maxDepth {
			maxDepth = d
		}

		if reg, isLocal := localIndex(inst); isLocal && reg >= m.limitLocals {
			v.addError(inst.line, fmt.Sprintf("register %d beyond .limit locals %d", reg, m.limitLocals), inst.code)
		}

		flow := opcodes[inst.opcode].flow
		if flow == flowBranch || flow == flowJump {
			if len(inst.args) != 1 {
				v.addError(inst.line, "branch without a label", inst.code)
				ok = false
				break
			}
			target, defined := m.labels[inst.args[0]]
			if !defined {
				v.addError(inst.line, "undefined label "+inst.args[0], inst.code)
				ok = false
				break
			}
			enter(inst, target, d)
		}
		if flow == flowNext || flow == flowBranch {
			enter(inst, i+1, d)
		}
	}

	for i, d := range depth {
		if d < 0 && ok {
			v.addWarn(m.insts[i].line, "unreachable instruction", m.insts[i].code)
		}
	}
	if ok && maxDepth != m.limitStack {
		v.addError(m.line, fmt.Sprintf(".limit stack %d but simulated maximum is %d", m.limitStack, maxDepth), m.name)
	}
	v.reports = append(v.reports, MethodReport{
		Name:        m.name,
		LimitStack:  m.limitStack,
		LimitLocals: m.limitLocals,
		MaxStack:    maxDepth,
	})
}

type flowKind int

const (
	flowNext   flowKind = iota
	flowBranch          // conditional: target and next
	flowJump            // target only
	flowExit            // no successor
)

type opInfo struct {
	pop, push int
	flow      flowKind
}

// varEffect marks invocations, whose effect comes from the descriptor
const varEffect = -1

var opcodes = map[string]opInfo{
	"nop": {0, 0, flowNext},

	"aconst_null": {0, 1, flowNext},
	"iconst_m1":   {0, 1, flowNext},
	"iconst_0":    {0, 1, flowNext},
	"iconst_1":    {0, 1, flowNext},
	"iconst_2":    {0, 1, flowNext},
	"iconst_3":    {0, 1, flowNext},
	"iconst_4":    {0, 1, flowNext},
	"iconst_5":    {0, 1, flowNext},
	"bipush":      {0, 1, flowNext},
	"sipush":      {0, 1, flowNext},
	"ldc":         {0, 1, flowNext},

	"iload":  {0, 1, flowNext},
	"aload":  {0, 1, flowNext},
	"istore": {1, 0, flowNext},
	"astore": {1, 0, flowNext},
	"iinc":   {0, 0, flowNext},

	"iaload":  {2, 1, flowNext},
	"baload":  {2, 1, flowNext},
	"aaload":  {2, 1, flowNext},
	"iastore": {3, 0, flowNext},
	"bastore": {3, 0, flowNext},
	"aastore": {3, 0, flowNext},

	"iadd": {2, 1, flowNext},
	"isub": {2, 1, flowNext},
	"imul": {2, 1, flowNext},
	"idiv": {2, 1, flowNext},
	"irem": {2, 1, flowNext},
	"iand": {2, 1, flowNext},
	"ior":  {2, 1, flowNext},
	"ixor": {2, 1, flowNext},
	"ineg": {1, 1, flowNext},

	"pop":  {1, 0, flowNext},
	"dup":  {1, 2, flowNext},
	"swap": {2, 2, flowNext},

	"new":         {0, 1, flowNext},
	"newarray":    {1, 1, flowNext},
	"anewarray":   {1, 1, flowNext},
	"arraylength": {1, 1, flowNext},
	"getfield":    {1, 1, flowNext},
	"putfield":    {2, 0, flowNext},
	"getstatic":   {0, 1, flowNext},
	"putstatic":   {1, 0, flowNext},
	"checkcast":   {1, 1, flowNext},

	"invokevirtual":    {varEffect, varEffect, flowNext},
	"invokespecial":    {varEffect, varEffect, flowNext},
	"invokenonvirtual": {varEffect, varEffect, flowNext},
	"invokestatic":     {varEffect, varEffect, flowNext},

	"ifeq":      {1, 0, flowBranch},
	"ifne":      {1, 0, flowBranch},
	"iflt":      {1, 0, flowBranch},
	"ifge":      {1, 0, flowBranch},
	"ifgt":      {1, 0, flowBranch},
	"ifle":      {1, 0, flowBranch},
	"ifnull":    {1, 0, flowBranch},
	"ifnonnull": {1, 0, flowBranch},
	"if_icmpeq": {2, 0, flowBranch},
	"if_icmpne": {2, 0, flowBranch},
	"if_icmplt": {2, 0, flowBranch},
	"if_icmpge": {2, 0, flowBranch},
	"if_icmpgt": {2, 0, flowBranch},
	"if_icmple": {2, 0, flowBranch},
	"if_acmpeq": {2, 0, flowBranch},
	"if_acmpne": {2, 0, flowBranch},
	"goto":      {0, 0, flowJump},

	"ireturn": {1, 0, flowExit},
	"areturn": {1, 0, flowExit},
	"return":  {0, 0, flowExit},
	"athrow":  {1, 0, flowExit},
}

// regOpcode matches the short register forms such as iload_2
var regOpcode = regexp.MustCompile(`^[ia](load|store)_([0-3])$`)

func init() {
	for _, prefix := range []string{"i", "a"} {
		for reg := 0; reg <= 3; reg++ {
			opcodes[fmt.Sprintf("%sload_%d", prefix, reg)] = opInfo{0, 1, flowNext}
			opcodes[fmt.Sprintf("%sstore_%d", prefix, reg)] = opInfo{1, 0, flowNext}
		}
	}
}

// stackEffect returns how many slots an instruction pops and pushes
func stackEffect(inst jvmInst) (int, int, error) {
	info := opcodes[inst.opcode]
	if info.pop != varEffect {
		return info.pop, info.push, nil
	}
	if len(inst.args) != 1 {
		return 0, 0, fmt.Errorf("malformed invocation")
	}
	args, ret, err := invocationShape(inst.args[0])
	if err != nil {
		return 0, 0, err
	}
	pop := args
	if inst.opcode != "invokestatic" {
		pop++
	}
	push := 0
	if ret != "V" {
		push = 1
	}
	return pop, push, nil
}

// invocationShape counts the arguments of Owner/name(desc)ret and returns the
// return descriptor
func invocationShape(ref string) (int, string, error) {
	open, end := strings.IndexByte(ref, '('), strings.IndexByte(ref, ')')
	if open < 0 || end < open {
		return 0, "", fmt.Errorf("malformed method reference %s", ref)
	}
	params, ret := ref[open+1:end], ref[end+1:]
	if ret == "" {
		return 0, "", fmt.Errorf("missing return type in %s", ref)
	}

	count := 0
	for i := 0; i < len(params); i++ {
		for params[i] == '[' {
			i++
			if i == len(params) {
				return 0, "", fmt.Errorf("malformed descriptor %s", ref)
			}
		}
		if params[i] == 'L' {
			semi := strings.IndexByte(params[i:], ';')
			if semi < 0 {
				return 0, "", fmt.Errorf("malformed descriptor %s", ref)
			}
			i += semi
		} else if !strings.ContainsRune("IZBCSF", rune(params[i])) {
			return 0, "", fmt.Errorf("unsupported descriptor %c in %s", params[i], ref)
		}
		count++
	}
	return count, ret, nil
}

// localIndex returns the register an instruction touches, if any
func localIndex(inst jvmInst) (int, bool) {
	if m := regOpcode.FindStringSubmatch(inst.opcode); m != nil {
		reg, _ := strconv.Atoi(m[2])
		return reg, true
	}
	switch inst.opcode {
	case "iload", "aload", "istore", "astore", "iinc":
		if len(inst.args) == 0 {
			return 0, false
		}
		reg, err := strconv.Atoi(inst.args[0])
		return reg, err == nil
	}
	return 0, false
}

func (v *Validator) addError(line int, msg, code string) {
	v.errors = append(v.errors, ValidationError{Line: line, Message: msg, Code: code})
}

func (v *Validator) addWarn(line int, msg, code string) {
	v.warns = append(v.warns, ValidationError{Line: line, Message: msg, Code: code})
}

func (v *Validator) formatErrors() error {
	var sb strings.Builder
	sb.WriteString("Assembly validation failed:\n")
	for _, err := range v.errors {
		sb.WriteString("  " + err.Error() + "\n")
	}
	return fmt.Errorf("%s", sb.String())
}

func (v *Validator) logWarnings() {
	for _, warn := range v.warns {
		logger.Warn("Assembly validation warning", "line", warn.Line, "msg", warn.Message)
	}
}

// ValidateProgram validates an entire generated program
func ValidateProgram(assembly string) error {
	validator := NewValidator()
	return validator.Validate(assembly)
}
