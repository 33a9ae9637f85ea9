package actions

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"formrelay.dev/db"
)

func testContext() *ActionContext {
	return &ActionContext{
		Submission: db.Submission{
			ID:        uuid.MustParse("00000000-0000-0000-0000-000000000001"),
			Data:      []byte(`{"email":"a@b.com","age":null,"tags":["x","y"]}`),
			Extras:    []byte(`{"referrer":"google"}`),
			Metadata:  []byte(`{"ip":"1.2.3.4"}`),
			CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		Endpoint: db.Endpoint{
			ID:   uuid.MustParse("00000000-0000-0000-0000-000000000002"),
			Name: "Contact Form",
			Slug: "contact",
		},
		Project: db.Project{Name: "Marketing Site", Slug: "marketing"},
		Tenant:  db.Tenant{Name: "Acme Inc"},
	}
}

func TestRenderTemplate_ResolvesKnownPaths(t *testing.T) {
	ctx := testContext()
	out := RenderTemplate("New submission from {{data.email}} on {{endpoint.name}}", ctx)
	assert.Equal(t, "New submission from a@b.com on Contact Form", out)
}

func TestRenderTemplate_UnknownPathExpandsEmpty(t *testing.T) {
	ctx := testContext()
	out := RenderTemplate("value=[{{data.nonexistent}}]", ctx)
	assert.Equal(t, "value=[]", out)
}

func TestRenderTemplate_NullFieldExpandsEmpty(t *testing.T) {
	ctx := testContext()
	out := RenderTemplate("age=[{{data.age}}]", ctx)
	assert.Equal(t, "age=[]", out)
}

func TestRenderTemplate_NonScalarStringifiedAsJSON(t *testing.T) {
	ctx := testContext()
	out := RenderTemplate("{{data.tags}}", ctx)
	assert.Equal(t, `["x","y"]`, out)
}

func TestRenderTemplate_ExtrasAndMetadata(t *testing.T) {
	ctx := testContext()
	out := RenderTemplate("{{extras.referrer}} / {{metadata.ip}}", ctx)
	assert.Equal(t, "google / 1.2.3.4", out)
}

func TestRenderTemplate_ProjectTenantSubmission(t *testing.T) {
	ctx := testContext()
	out := RenderTemplate("{{project.name}} | {{tenant.name}} | {{submission.id}}", ctx)
	assert.Equal(t, "Marketing Site | Acme Inc | 00000000-0000-0000-0000-000000000001", out)
}

func TestRenderTemplate_LeavesPlainTextUntouched(t *testing.T) {
	ctx := testContext()
	out := RenderTemplate("no placeholders here", ctx)
	assert.Equal(t, "no placeholders here", out)
}

func TestRenderTemplate_SingleSegmentPathExpandsEmpty(t *testing.T) {
	ctx := testContext()
	out := RenderTemplate("[{{data}}]", ctx)
	assert.Equal(t, "[]", out)
}
