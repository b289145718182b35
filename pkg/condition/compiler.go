package condition

import (
	"fmt"
	"strings"
	"time"

	"pos-sync/internal/common/models"
)

type RuleType string

const (
	RuleTypeValue    RuleType = "value"
	RuleTypeVariable RuleType = "variable"
)

// Rule compares one record field with a value.
type Rule struct {
	Field    string   `yaml:"field" json:"field"`
	Operator string   `yaml:"operator" json:"operator"`
	Value    any      `yaml:"value" json:"value"`
	Type     RuleType `yaml:"type,omitempty" json:"type,omitempty"`
}

// Group combines rules and nested groups with AND (default) or OR.
type Group struct {
	Operator string  `yaml:"operator,omitempty" json:"operator,omitempty"`
	Rules    []Rule  `yaml:"rules,omitempty" json:"rules,omitempty"`
	Groups   []Group `yaml:"groups,omitempty" json:"groups,omitempty"`
}

// Predicate reports whether a record satisfies a compiled group.
type Predicate func(rec models.Record) bool

type Compiler struct {
	Context map[string]interface{}
}

func NewCompiler(ctx map[string]interface{}) *Compiler {
	return &Compiler{Context: ctx}
}

// Compile turns a group into a Predicate. A nil or empty group matches everything.
func (c *Compiler) Compile(group *Group) (Predicate, error) {
	if group == nil {
		return func(models.Record) bool { return true }, nil
	}

	var conditions []Predicate

	for _, rule := range group.Rules {
		cond, err := c.compileRule(rule)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}

	for i := range group.Groups {
		cond, err := c.Compile(&group.Groups[i])
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}

	if len(conditions) == 0 {
		return func(models.Record) bool { return true }, nil
	}

	if strings.ToUpper(group.Operator) == "OR" {
		return func(rec models.Record) bool {
			for _, cond := range conditions {
				if cond(rec) {
					return true
				}
			}
			return false
		}, nil
	}
	return func(rec models.Record) bool {
		for _, cond := range conditions {
			if !cond(rec) {
				return false
			}
		}
		return true
	}, nil
}

func (c *Compiler) compileRule(rule Rule) (Predicate, error) {
	val, err := c.resolveValue(rule.Value, rule.Type)
	if err != nil {
		return nil, err
	}

	field := rule.Field
	get := func(rec models.Record) (any, bool) {
		v, ok := rec.Get(field)
		return v, ok && v != nil
	}

	switch rule.Operator {
	case "eq":
		return func(rec models.Record) bool {
			v, ok := get(rec)
			return ok && compare(v, val) == 0
		}, nil
	case "ne":
		return func(rec models.Record) bool {
			v, ok := get(rec)
			return !ok || compare(v, val) != 0
		}, nil
	case "gt", "lt", "gte", "lte":
		op := rule.Operator
		return func(rec models.Record) bool {
			v, ok := get(rec)
			if !ok {
				return false
			}
			cmp := compare(v, val)
			switch op {
			case "gt":
				return cmp > 0
			case "lt":
				return cmp < 0
			case "gte":
				return cmp >= 0
			}
			return cmp <= 0
		}, nil
	case "in", "nin":
		list, ok := val.([]any)
		if !ok {
			return nil, fmt.Errorf("%s operator requires a list value", rule.Operator)
		}
		negate := rule.Operator == "nin"
		return func(rec models.Record) bool {
			v, ok := get(rec)
			found := false
			if ok {
				for _, item := range list {
					if compare(v, item) == 0 {
						found = true
						break
					}
				}
			}
			return found != negate
		}, nil
	case "contains", "startsWith", "starts_with", "endsWith", "ends_with":
		strVal, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("%s operator requires string value", rule.Operator)
		}
		needle := strings.ToLower(strVal)
		match := strings.Contains
		switch rule.Operator {
		case "startsWith", "starts_with":
			match = strings.HasPrefix
		case "endsWith", "ends_with":
			match = strings.HasSuffix
		}
		return func(rec models.Record) bool {
			v, ok := get(rec)
			return ok && match(strings.ToLower(fmt.Sprint(v)), needle)
		}, nil
	default:
		return nil, fmt.Errorf("unknown operator: %s", rule.Operator)
	}
}

// compare orders numerically when both sides are numbers, as text otherwise.
func compare(a, b any) int {
	af, aok := models.ToFloat(a)
	bf, bok := models.ToFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func (c *Compiler) resolveValue(val interface{}, ruleType RuleType) (interface{}, error) {
	if ruleType != RuleTypeVariable {
		return val, nil
	}

	strVal, ok := val.(string)
	if !ok || !strings.HasPrefix(strVal, "$") {
		return val, nil
	}

	key := strings.TrimPrefix(strVal, "$")

	// Timestamps are stored as unix millis
	if key == "now" {
		return time.Now().UnixMilli(), nil
	}

	if resolved, ok := c.Context[key]; ok {
		return resolved, nil
	}
	return nil, fmt.Errorf("variable not found in context: %s", key)
}
