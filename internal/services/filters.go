package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/pulseboardhq/analytics-backend/internal/dto"
	"github.com/pulseboardhq/analytics-backend/internal/errs"
	"github.com/pulseboardhq/analytics-backend/internal/models"
	"github.com/pulseboardhq/analytics-backend/internal/sqlq"
)

// negotiation is the outcome of matching requested filters against a
// widget's declared support and live schema: parameterized predicates plus
// the applied/ignored bookkeeping the client contract exposes.
type negotiation struct {
	conditions []sqlq.Condition
	applied    map[string]any
	ignored    map[string][]string

	// cityColumn/cityValue feed the normalizer's NULL backfill.
	cityColumn string
	cityValue  string
}

// dimensionSpec parameterizes the shared resolution strategy: an ordered
// candidate column list, the default_filters keys consulted when no value is
// supplied (cross-aliases included), and an optional alias expansion.
type dimensionSpec struct {
	name        string
	candidates  func(cfg *models.WidgetConfig) []string
	defaultKeys []string
	expand      func(column, value string) []string
}

func staticCandidates(columns ...string) func(*models.WidgetConfig) []string {
	return func(*models.WidgetConfig) []string { return columns }
}

// cityCandidates is shared by the negotiator and the normalizer's city
// backfill so both always resolve the same physical column.
func cityCandidates(cfg *models.WidgetConfig) []string {
	if cfg.CityColumn != "" {
		return []string{cfg.CityColumn}
	}
	return []string{"city", "city_name", "branch_city"}
}

// scalarDimensions is ordered; iteration order keeps negotiation output
// deterministic across identical calls.
var scalarDimensions = []dimensionSpec{
	{
		name:        dto.FilterCity,
		candidates:  cityCandidates,
		defaultKeys: []string{dto.FilterCity},
	},
	{
		name:        dto.FilterPlatform,
		candidates:  staticCandidates("platform", "platform_name", "channel"),
		defaultKeys: []string{dto.FilterPlatform, dto.FilterChannel},
		expand:      expandPlatformAlias,
	},
	{
		name:        dto.FilterChannel,
		candidates:  staticCandidates("channel", "channel_name"),
		defaultKeys: []string{dto.FilterChannel},
		expand:      expandPlatformAlias,
	},
	{
		name:        dto.FilterDevice,
		candidates:  staticCandidates("device", "device_type"),
		defaultKeys: []string{dto.FilterDevice},
	},
	{
		name:        dto.FilterProduct,
		candidates:  staticCandidates("product", "product_name", "course_name", "first_course_name"),
		defaultKeys: []string{dto.FilterProduct},
	},
	{
		name:        dto.FilterBranch,
		candidates:  staticCandidates("branch", "branch_name"),
		defaultKeys: []string{dto.FilterBranch},
	},
	{
		name:        dto.FilterSource,
		candidates:  staticCandidates("source", "utm_source", "lead_source"),
		defaultKeys: []string{dto.FilterSource},
	},
	{
		name:        dto.FilterStatus,
		candidates:  staticCandidates("status", "status_name"),
		defaultKeys: []string{dto.FilterStatus},
	},
	{
		name:        dto.FilterObjective,
		candidates:  staticCandidates("objective", "campaign_objective"),
		defaultKeys: []string{dto.FilterObjective},
	},
	{
		name:        dto.FilterCampaignID,
		candidates:  staticCandidates("campaign_id"),
		defaultKeys: []string{dto.FilterCampaignID},
	},
	{
		name:        dto.FilterAdsetID,
		candidates:  staticCandidates("adset_id", "ad_set_id"),
		defaultKeys: []string{dto.FilterAdsetID},
	},
	{
		name:        dto.FilterAdGroupID,
		candidates:  staticCandidates("ad_group_id", "adgroup_id"),
		defaultKeys: []string{dto.FilterAdGroupID},
	},
	{
		name:        dto.FilterConversionType,
		candidates:  staticCandidates("conversion_type", "conversion_name"),
		defaultKeys: []string{dto.FilterConversionType},
	},
	{
		name: dto.FilterEntityID,
		candidates: func(cfg *models.WidgetConfig) []string {
			if cfg.EntityIDColumn != "" {
				return []string{cfg.EntityIDColumn}
			}
			if cfg.EntityType != "" {
				return []string{cfg.EntityType + "_id"}
			}
			return []string{"entity_id"}
		},
		defaultKeys: []string{dto.FilterEntityID},
	},
}

// platformAliases expands marketing platform shorthands into the value
// variants the reporting pipelines actually write.
var platformAliases = map[string][]string{
	"meta":     {"meta", "facebook", "instagram", "fb"},
	"facebook": {"meta", "facebook", "instagram", "fb"},
	"gads":     {"gads", "google", "adwords", "google_ads"},
	"google":   {"gads", "google", "adwords", "google_ads"},
}

// channelColumnAliases applies when the resolved column is literally
// "channel", whose pipelines use the paid_* naming.
var channelColumnAliases = map[string][]string{
	"meta":     {"paid_meta", "meta"},
	"facebook": {"paid_meta", "meta"},
	"gads":     {"paid_google", "gads"},
	"google":   {"paid_google", "gads"},
}

func expandPlatformAlias(column, value string) []string {
	v := strings.ToLower(strings.TrimSpace(value))
	if column == "channel" {
		return channelColumnAliases[v]
	}
	return platformAliases[v]
}

// resolveColumn is the shared strategy: first candidate present in the live
// schema wins.
func resolveColumn(candidates []string, columns map[string]string) (string, bool) {
	for _, c := range candidates {
		if _, ok := columns[c]; ok {
			return c, true
		}
	}
	return "", false
}

// negotiate runs the filter negotiation for one widget against its live
// columns. For every dimension, uniformly: the unsupported check first, then
// column resolution, then default fallback, then coercion to the physical
// type. applied is keyed by semantic name only.
func negotiate(cfg *models.WidgetConfig, columns map[string]string, filters map[string]string) (*negotiation, error) {
	n := &negotiation{
		applied: map[string]any{},
		ignored: map[string][]string{},
	}

	for _, dim := range scalarDimensions {
		if err := n.negotiateScalar(cfg, columns, filters, dim); err != nil {
			return nil, err
		}
	}
	if err := n.negotiateDate(cfg, columns, filters); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *negotiation) negotiateScalar(cfg *models.WidgetConfig, columns map[string]string, filters map[string]string, dim dimensionSpec) error {
	value := strings.TrimSpace(filters[dim.name])

	// Unsupported wins over every other outcome, including missing column.
	if !cfg.Supports(dim.name) {
		if value != "" {
			n.ignore(dto.IgnoredUnsupported, dim.name)
		}
		return nil
	}

	column, ok := resolveColumn(dim.candidates(cfg), columns)
	if !ok {
		if value != "" {
			n.ignore(dto.IgnoredMissingColumn, dim.name)
		}
		return nil
	}

	if value == "" {
		value = lookupDefault(cfg, dim.defaultKeys)
	}
	if value == "" {
		return nil
	}

	// "all" is the UI's default city state, not a filter.
	if dim.name == dto.FilterCity && strings.EqualFold(value, "all") {
		return nil
	}

	if dim.expand != nil {
		if members := dim.expand(column, value); len(members) > 0 {
			bound := make([]any, len(members))
			for i, m := range members {
				bound[i] = m
			}
			n.conditions = append(n.conditions, sqlq.Condition{
				Column:   column,
				Operator: "IN",
				Value:    bound,
			})
			n.applied[dim.name] = members
			return nil
		}
	}

	coerced, err := coerceValue(dim.name, value, columns[column])
	if err != nil {
		return err
	}
	n.conditions = append(n.conditions, sqlq.Condition{
		Column:   column,
		Operator: "=",
		Value:    coerced,
	})
	n.applied[dim.name] = coerced

	if dim.name == dto.FilterCity {
		n.cityColumn = column
		n.cityValue = value
	}
	return nil
}

// negotiateDate handles the two-bounded date dimension: unsupported clears
// both bounds even when the column exists; a supported widget with no date
// column clears both as missing_column; otherwise each bound applies
// independently.
func (n *negotiation) negotiateDate(cfg *models.WidgetConfig, columns map[string]string, filters map[string]string) error {
	from := strings.TrimSpace(filters[dto.FilterDateFrom])
	to := strings.TrimSpace(filters[dto.FilterDateTo])

	if !cfg.Supports("date") {
		if from != "" {
			n.ignore(dto.IgnoredUnsupported, dto.FilterDateFrom)
		}
		if to != "" {
			n.ignore(dto.IgnoredUnsupported, dto.FilterDateTo)
		}
		return nil
	}

	column, ok := resolveColumn([]string{cfg.DateColumn}, columns)
	if !ok {
		if from != "" {
			n.ignore(dto.IgnoredMissingColumn, dto.FilterDateFrom)
		}
		if to != "" {
			n.ignore(dto.IgnoredMissingColumn, dto.FilterDateTo)
		}
		return nil
	}

	if from == "" {
		from = lookupDefault(cfg, []string{dto.FilterDateFrom})
	}
	if to == "" {
		to = lookupDefault(cfg, []string{dto.FilterDateTo})
	}

	if from != "" {
		n.conditions = append(n.conditions, sqlq.Condition{
			Column:   column,
			Operator: ">=",
			Value:    from,
		})
		n.applied[dto.FilterDateFrom] = from
	}
	if to != "" {
		n.conditions = append(n.conditions, sqlq.Condition{
			Column:   column,
			Operator: "<=",
			Value:    to,
		})
		n.applied[dto.FilterDateTo] = to
	}
	return nil
}

func (n *negotiation) ignore(reason, dimension string) {
	n.ignored[reason] = append(n.ignored[reason], dimension)
}

func lookupDefault(cfg *models.WidgetConfig, keys []string) string {
	for _, k := range keys {
		if v, ok := cfg.DefaultFilters[k]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// coerceValue converts a filter value to the column's physical type. Parse
// failures on typed columns are the caller's error; strings pass through.
func coerceValue(dimension, value, columnType string) (any, error) {
	switch columnType {
	case "int":
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, errs.NewInvalidFilterValueError(
				fmt.Sprintf("filter %q expects an integer, got %q", dimension, value))
		}
		return i, nil
	case "float":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, errs.NewInvalidFilterValueError(
				fmt.Sprintf("filter %q expects a number, got %q", dimension, value))
		}
		return f, nil
	case "uuid":
		u, err := uuid.Parse(value)
		if err != nil {
			return nil, errs.NewInvalidFilterValueError(
				fmt.Sprintf("filter %q expects a uuid, got %q", dimension, value))
		}
		return u.String(), nil
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, errs.NewInvalidFilterValueError(
				fmt.Sprintf("filter %q expects a boolean, got %q", dimension, value))
		}
		return b, nil
	default:
		return value, nil
	}
}
