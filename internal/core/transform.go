package core

// transform.go applies the per-field rule chain to raw cell values.
// Rule order is fixed; configuration only toggles presence of each step.

import (
	"regexp"
	"strings"
)

// TransformRules is the ordered, per-field rule configuration. Zero value
// is the identity transform. Steps run in the fixed order:
// trim, upper, lower, strip prefix, regexp substitution, append suffix.
type TransformRules struct {
	Trim  bool
	Upper bool
	Lower bool

	// StripPrefix removes the literal prefix, only when present.
	StripPrefix string

	// Pattern / Replace applies a regular-expression substitution.
	// A pattern that does not compile is silently ignored.
	Pattern string
	Replace string

	// AppendSuffix appends the literal suffix.
	AppendSuffix string
}

// IsZero reports whether no rule is configured.
func (r TransformRules) IsZero() bool {
	return r == TransformRules{}
}

// ApplyTransforms runs the rule chain on v. A nil input always yields nil:
// transforms never manufacture data from absence.
func ApplyTransforms(v *string, rules TransformRules) *string {
	if v == nil {
		return nil
	}

	s := *v

	if rules.Trim {
		s = strings.TrimSpace(s)
	}
	if rules.Upper {
		s = strings.ToUpper(s)
	}
	if rules.Lower {
		s = strings.ToLower(s)
	}
	if rules.StripPrefix != "" {
		s = strings.TrimPrefix(s, rules.StripPrefix)
	}
	if rules.Pattern != "" {
		if re, err := regexp.Compile(rules.Pattern); err == nil {
			s = re.ReplaceAllString(s, rules.Replace)
		}
	}
	if rules.AppendSuffix != "" {
		s += rules.AppendSuffix
	}

	return &s
}
