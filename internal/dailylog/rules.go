// Package dailylog records and validates one day's field activities
// per production cycle.
package dailylog

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aethra/farmops/internal/errors"
	"github.com/aethra/farmops/internal/models"
)

// InputEntry is one consumed input in an item payload
type InputEntry struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Notes    string  `json:"notes"`
}

// ItemInput is one activity entry in a log payload
type ItemInput struct {
	ActivityTypeID uuid.UUID              `json:"activity_type_id"`
	PerformedBy    *uuid.UUID             `json:"performed_by"`
	StartedAt      *time.Time             `json:"started_at"`
	EndedAt        *time.Time             `json:"ended_at"`
	Quantity       *float64               `json:"quantity"`
	Unit           string                 `json:"unit"`
	Notes          string                 `json:"notes"`
	Meta           map[string]interface{} `json:"meta"`
	Inputs         []InputEntry           `json:"inputs"`
	Photos         []string               `json:"photos"`
}

// Rule is one evidence requirement evaluated against an item. Check
// returns every failure it finds; the path prefixes field names, e.g.
// "items.0".
type Rule interface {
	Check(item ItemInput, path string) []errors.FieldError
}

// RequireQuantity demands a positive quantity with a unit. When the
// activity type restricts units, the unit must be one of them.
type RequireQuantity struct {
	AllowedUnits []string
}

func (r RequireQuantity) Check(item ItemInput, path string) []errors.FieldError {
	var out []errors.FieldError
	if item.Quantity == nil || *item.Quantity <= 0 {
		out = append(out, errors.FieldError{Field: path + ".quantity", Message: "a positive quantity is required for this activity"})
	}
	if item.Unit == "" {
		out = append(out, errors.FieldError{Field: path + ".unit", Message: "a unit is required for this activity"})
	} else if len(r.AllowedUnits) > 0 && !contains(r.AllowedUnits, item.Unit) {
		out = append(out, errors.FieldError{
			Field:   path + ".unit",
			Message: fmt.Sprintf("must be one of %s", strings.Join(r.AllowedUnits, ", ")),
		})
	}
	return out
}

// RequireTimeRange demands started/ended stamps with ended after started
type RequireTimeRange struct{}

func (RequireTimeRange) Check(item ItemInput, path string) []errors.FieldError {
	var out []errors.FieldError
	if item.StartedAt == nil {
		out = append(out, errors.FieldError{Field: path + ".started_at", Message: "start time is required for this activity"})
	}
	if item.EndedAt == nil {
		out = append(out, errors.FieldError{Field: path + ".ended_at", Message: "end time is required for this activity"})
	}
	if item.StartedAt != nil && item.EndedAt != nil && !item.EndedAt.After(*item.StartedAt) {
		out = append(out, errors.FieldError{Field: path + ".ended_at", Message: "end time must be after start time"})
	}
	return out
}

// RequireInputs demands at least one consumed input, each fully specified
type RequireInputs struct{}

func (RequireInputs) Check(item ItemInput, path string) []errors.FieldError {
	if len(item.Inputs) == 0 {
		return []errors.FieldError{{Field: path + ".inputs", Message: "at least one input is required for this activity"}}
	}
	var out []errors.FieldError
	for i, in := range item.Inputs {
		p := fmt.Sprintf("%s.inputs.%d", path, i)
		if in.Name == "" {
			out = append(out, errors.FieldError{Field: p + ".name", Message: "input name is required"})
		}
		if in.Quantity <= 0 {
			out = append(out, errors.FieldError{Field: p + ".quantity", Message: "input quantity must be positive"})
		}
		if in.Unit == "" {
			out = append(out, errors.FieldError{Field: p + ".unit", Message: "input unit is required"})
		}
	}
	return out
}

// RequirePhotos demands at least one photo reference. Only presence is
// checked; files live in external storage.
type RequirePhotos struct{}

func (RequirePhotos) Check(item ItemInput, path string) []errors.FieldError {
	if len(item.Photos) == 0 {
		return []errors.FieldError{{Field: path + ".photos", Message: "at least one photo is required for this activity"}}
	}
	return nil
}

// ConditionalField demands a dependent meta field whenever a boolean
// flag field is set, e.g. severity when pests_observed is true.
type ConditionalField struct {
	Flag      string
	Dependent string
	Allowed   []string
}

func (r ConditionalField) Check(item ItemInput, path string) []errors.FieldError {
	flag, _ := item.Meta[r.Flag].(bool)
	if !flag {
		return nil
	}
	raw, present := item.Meta[r.Dependent]
	value, _ := raw.(string)
	if !present || value == "" {
		return []errors.FieldError{{
			Field:   fmt.Sprintf("%s.meta.%s", path, r.Dependent),
			Message: fmt.Sprintf("%s is required when %s is set", r.Dependent, r.Flag),
		}}
	}
	if len(r.Allowed) > 0 && !contains(r.Allowed, value) {
		return []errors.FieldError{{
			Field:   fmt.Sprintf("%s.meta.%s", path, r.Dependent),
			Message: fmt.Sprintf("must be one of %s", strings.Join(r.Allowed, ", ")),
		}}
	}
	return nil
}

// RulesFor builds the rule set an activity type demands, from its
// boolean requirement flags plus the conditional_rules list in its
// schema.
func RulesFor(at *models.ActivityType) []Rule {
	var rules []Rule
	if at.RequiresQuantity {
		rules = append(rules, RequireQuantity{AllowedUnits: at.AllowedUnits})
	}
	if at.RequiresTimeRange {
		rules = append(rules, RequireTimeRange{})
	}
	if at.RequiresInputs {
		rules = append(rules, RequireInputs{})
	}
	if at.RequiresPhotos {
		rules = append(rules, RequirePhotos{})
	}
	rules = append(rules, conditionalRules(at.Schema)...)
	return rules
}

// conditionalRules reads schema["conditional_rules"], a list of
// {"flag": ..., "dependent": ..., "allowed": [...]} objects. Malformed
// entries are skipped rather than failing the whole type.
func conditionalRules(schema models.JSONB) []Rule {
	raw, ok := schema["conditional_rules"].([]interface{})
	if !ok {
		return nil
	}
	var rules []Rule
	for _, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		flag, _ := m["flag"].(string)
		dependent, _ := m["dependent"].(string)
		if flag == "" || dependent == "" {
			continue
		}
		rule := ConditionalField{Flag: flag, Dependent: dependent}
		if allowed, ok := m["allowed"].([]interface{}); ok {
			for _, a := range allowed {
				if s, ok := a.(string); ok {
					rule.Allowed = append(rule.Allowed, s)
				}
			}
		}
		rules = append(rules, rule)
	}
	return rules
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
