package actions

import (
	"encoding/json"
	"regexp"
)

// templateRe matches {{path}} placeholders where path is one or more
// dot-separated word segments.
var templateRe = regexp.MustCompile(`\{\{(\w+(?:\.\w+)*)\}\}`)

// RenderTemplate replaces every {{path}} placeholder in tmpl with its
// resolved string value against ctx. An unresolvable path expands to the
// empty string rather than failing; a placeholder whose inner text doesn't
// match the path pattern is left untouched.
func RenderTemplate(tmpl string, ctx *ActionContext) string {
	return templateRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		path := templateRe.FindStringSubmatch(match)[1]
		return resolvePath(path, ctx)
	})
}

func resolvePath(path string, ctx *ActionContext) string {
	head, rest, hasRest := splitFirst(path)
	if !hasRest {
		return ""
	}

	switch head {
	case "data":
		return jsonStringField(ctx.Submission.Data, rest)
	case "extras":
		return jsonStringField(ctx.Submission.Extras, rest)
	case "metadata":
		return jsonStringField(ctx.Submission.Metadata, rest)
	case "endpoint":
		switch rest {
		case "name":
			return ctx.Endpoint.Name
		case "slug":
			return ctx.Endpoint.Slug
		case "id":
			return ctx.Endpoint.ID.String()
		}
	case "project":
		switch rest {
		case "name":
			return ctx.Project.Name
		case "slug":
			return ctx.Project.Slug
		}
	case "tenant":
		if rest == "name" {
			return ctx.Tenant.Name
		}
	case "submission":
		switch rest {
		case "id":
			return ctx.Submission.ID.String()
		case "created_at":
			return ctx.Submission.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
	}
	return ""
}

// splitFirst splits "a.b.c" into ("a", "b.c", true); a path with no dot has
// no resolvable second segment, so hasRest is false.
func splitFirst(path string) (head, rest string, hasRest bool) {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i], path[i+1:], true
		}
	}
	return path, "", false
}

// jsonStringField looks up field in a JSON object and stringifies the
// result: strings pass through verbatim, null becomes empty, and anything
// else is rendered as canonical compact JSON text.
func jsonStringField(raw []byte, field string) string {
	if len(raw) == 0 {
		return ""
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}

	value, ok := obj[field]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s
	}

	if string(value) == "null" {
		return ""
	}

	return string(value)
}

