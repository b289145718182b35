package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"pos-sync/internal/common/models"
	"pos-sync/pkg/condition"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"gopkg.in/yaml.v3"
)

// DuplicateRule defines when two records of an entity type are the same
// business fact. The key is either the joined Fields values or the `key`
// variable a tengo Script assigns from `record`. Where restricts the
// records considered.
type DuplicateRule struct {
	EntityType models.EntityType `yaml:"entity" json:"entity"`
	Fields     []string          `yaml:"fields,omitempty" json:"fields,omitempty"`
	Script     string            `yaml:"script,omitempty" json:"script,omitempty"`
	Where      *condition.Group  `yaml:"where,omitempty" json:"where,omitempty"`
}

type rulesFile struct {
	Rules []DuplicateRule `yaml:"rules"`
}

// DefaultRules: one inventory adjustment per product and adjustment type.
func DefaultRules() []DuplicateRule {
	return []DuplicateRule{
		{EntityType: models.EntityInventory, Fields: []string{"productId", "adjustmentType"}},
	}
}

// LoadRules reads duplicate rules from a YAML file. An empty path yields DefaultRules.
//
//	rules:
//	  - entity: inventory
//	    fields: [productId, adjustmentType]
//	    where:
//	      rules:
//	        - {field: adjustmentType, operator: ne, value: sale}
//	  - entity: customers
//	    script: |
//	      text := import("text")
//	      key := text.to_lower(record.phone)
func LoadRules(path string) ([]DuplicateRule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read duplicate rules: %w", err)
	}
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse duplicate rules %s: %w", path, err)
	}
	for _, rule := range file.Rules {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
	}
	return file.Rules, nil
}

func (r DuplicateRule) Validate() error {
	if _, err := models.Lookup(r.EntityType); err != nil {
		return err
	}
	if len(r.Fields) == 0 && strings.TrimSpace(r.Script) == "" {
		return fmt.Errorf("duplicate rule for %s needs fields or a script", r.EntityType)
	}
	if _, err := condition.NewCompiler(nil).Compile(r.Where); err != nil {
		return fmt.Errorf("duplicate rule for %s: %w", r.EntityType, err)
	}
	return nil
}

// FindRule returns the rule for an entity type.
func FindRule(rules []DuplicateRule, entityType models.EntityType) (DuplicateRule, bool) {
	for _, rule := range rules {
		if rule.EntityType == entityType {
			return rule, true
		}
	}
	return DuplicateRule{}, false
}

// FindDuplicates groups records by the rule key. In every group with more
// than one record the earliest (created_at, then id) is the original.
// Records without a key are never reported.
func FindDuplicates(ctx context.Context, records []models.Record, rule DuplicateRule) ([]DuplicateGroup, error) {
	keyOf, err := rule.keyFunc()
	if err != nil {
		return nil, err
	}
	where, err := condition.NewCompiler(nil).Compile(rule.Where)
	if err != nil {
		return nil, err
	}

	groups := map[string][]models.Record{}
	for _, rec := range records {
		if !where(rec) {
			continue
		}
		key, err := keyOf(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("duplicate key for %s %s: %w", rule.EntityType, rec.ID(), err)
		}
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], rec)
	}

	keys := make([]string, 0, len(groups))
	for key, recs := range groups {
		if len(recs) > 1 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	result := make([]DuplicateGroup, 0, len(keys))
	for _, key := range keys {
		recs := groups[key]
		sort.SliceStable(recs, func(i, j int) bool { return earlier(recs[i], recs[j]) })
		result = append(result, DuplicateGroup{
			EntityType: rule.EntityType,
			Key:        key,
			Original:   recs[0],
			Duplicates: recs[1:],
		})
	}
	return result, nil
}

type keyFunc func(ctx context.Context, rec models.Record) (string, error)

func (r DuplicateRule) keyFunc() (keyFunc, error) {
	if strings.TrimSpace(r.Script) == "" {
		return r.fieldKey, nil
	}

	script := tengo.NewScript([]byte(r.Script))
	script.SetImports(stdlib.GetModuleMap("text", "fmt", "math"))
	if err := script.Add("record", map[string]interface{}{}); err != nil {
		return nil, err
	}
	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile duplicate rule for %s: %w", r.EntityType, err)
	}

	return func(ctx context.Context, rec models.Record) (string, error) {
		run := compiled.Clone()
		if err := run.Set("record", tengoRecord(rec)); err != nil {
			return "", err
		}
		if err := run.RunContext(ctx); err != nil {
			return "", fmt.Errorf("failed to run duplicate rule: %w", err)
		}
		key := run.Get("key")
		if key.IsUndefined() {
			return "", nil
		}
		return key.String(), nil
	}, nil
}

// fieldKey joins the rule fields. A record missing any of them has no key.
func (r DuplicateRule) fieldKey(_ context.Context, rec models.Record) (string, error) {
	parts := make([]string, 0, len(r.Fields))
	for _, field := range r.Fields {
		v, ok := rec.Get(field)
		if !ok || v == nil {
			return "", nil
		}
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, "|"), nil
}

// tengoRecord converts values tengo cannot take directly (json.Number).
func tengoRecord(rec models.Record) map[string]interface{} {
	out := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		out[k] = tengoValue(v)
	}
	return out
}

func tengoValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case models.Record:
		return tengoRecord(t)
	case map[string]any:
		return tengoRecord(t)
	case []any:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = tengoValue(e)
		}
		return out
	}
	return v
}

func earlier(a, b models.Record) bool {
	ta, tb := createdAt(a), createdAt(b)
	if ta != tb {
		return ta < tb
	}
	ia, aok := models.ToFloat(a.ID())
	ib, bok := models.ToFloat(b.ID())
	if aok && bok && ia != ib {
		return ia < ib
	}
	return a.ID() < b.ID()
}

// createdAt returns unix millis. Numbers are taken as millis, strings as
// RFC 3339. Records without a usable timestamp sort last.
func createdAt(rec models.Record) int64 {
	v, ok := rec.Get("created_at")
	if !ok || v == nil {
		return math.MaxInt64
	}
	if n, ok := models.ToFloat(v); ok {
		return int64(n)
	}
	if s, ok := v.(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UnixMilli()
		}
	}
	if t, ok := v.(time.Time); ok {
		return t.UnixMilli()
	}
	return math.MaxInt64
}
