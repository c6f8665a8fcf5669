package cel

import (
	"path/filepath"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"

	"github.com/wardenauth/warden/internal/domain/policy"
)

// newConditionEnvironment builds the CEL environment a Rule's Condition is
// compiled against: the subject fields of policy.Context plus the
// (resource, action) pair under evaluation, and a glob helper matching the
// same filepath.Match semantics internal/domain/policy's own Resources/
// Actions matcher uses, so Condition expressions stay consistent with the
// non-CEL matcher they layer on top of.
func newConditionEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(),
		ext.Sets(),

		cel.Variable("user_id", cel.StringType),
		cel.Variable("roles", cel.ListType(cel.StringType)),
		cel.Variable("permissions", cel.ListType(cel.StringType)),
		cel.Variable("custom", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("resource", cel.StringType),
		cel.Variable("action", cel.StringType),

		// glob exposes the same filepath.Match-based matching
		// internal/domain/policy's Resources/Actions fields use, so a
		// Condition can express the identical pattern language: e.g.
		// glob(resource, "docs:*"). Role/permission membership needs no
		// custom function since CEL's "in" operator already covers it:
		// e.g. "admin" in roles.
		cel.Function("glob",
			cel.Overload("glob_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(value, pattern ref.Val) ref.Val {
					v, _ := value.Value().(string)
					p, _ := pattern.Value().(string)
					matched, _ := filepath.Match(p, v)
					return types.Bool(matched)
				}),
			),
		),
	)
}

func buildActivation(ctx policy.Context, resource, action string) map[string]any {
	roles := ctx.Roles
	if roles == nil {
		roles = []string{}
	}
	permissions := ctx.Permissions
	if permissions == nil {
		permissions = []string{}
	}
	custom := ctx.Custom
	if custom == nil {
		custom = map[string]string{}
	}
	return map[string]any{
		"user_id":     ctx.UserID,
		"roles":       roles,
		"permissions": permissions,
		"custom":      custom,
		"resource":    resource,
		"action":      action,
	}
}
