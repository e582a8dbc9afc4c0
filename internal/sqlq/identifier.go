package sqlq

import (
	"regexp"

	"github.com/pulseboardhq/analytics-backend/internal/errs"
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Identifier is a validated, schema-qualified relation name. Relation names
// cannot be parameter-bound, so this type is the only string the builder
// interpolates into SQL text, and it is constructible only through
// ParseIdentifier. Everything else is always a bound parameter.
type Identifier struct {
	schema   string
	relation string
}

// ParseIdentifier validates view against the schema allow-list and a strict
// identifier pattern. Inputs that fail validation never reach SQL text.
func ParseIdentifier(view string, allowedSchemas []string) (Identifier, error) {
	schema, relation, ok := splitQualified(view)
	if !ok {
		return Identifier{}, errs.NewInvalidViewIdentifierError(
			"view must be a schema-qualified relation name: " + view)
	}
	if !identPattern.MatchString(schema) || !identPattern.MatchString(relation) {
		return Identifier{}, errs.NewInvalidViewIdentifierError(
			"view contains invalid identifier characters: " + view)
	}
	if !schemaAllowed(schema, allowedSchemas) {
		return Identifier{}, errs.NewInvalidViewIdentifierError(
			"view schema is not allow-listed: " + schema)
	}
	return Identifier{schema: schema, relation: relation}, nil
}

func (id Identifier) Schema() string   { return id.schema }
func (id Identifier) Relation() string { return id.relation }

// Qualified returns the schema.relation form for SQL text.
func (id Identifier) Qualified() string { return id.schema + "." + id.relation }

// ValidColumn reports whether name is safe to appear as a column reference.
// Negotiated columns always come from the live schema, so this is a second
// line of defense, not the primary one.
func ValidColumn(name string) bool {
	return identPattern.MatchString(name)
}

func splitQualified(view string) (schema, relation string, ok bool) {
	for i := 0; i < len(view); i++ {
		if view[i] == '.' {
			schema, relation = view[:i], view[i+1:]
			// A second dot means a malformed name, not a deeper qualification.
			for j := 0; j < len(relation); j++ {
				if relation[j] == '.' {
					return "", "", false
				}
			}
			return schema, relation, schema != "" && relation != ""
		}
	}
	return "", "", false
}

func schemaAllowed(schema string, allowed []string) bool {
	for _, s := range allowed {
		if s == schema {
			return true
		}
	}
	return false
}
