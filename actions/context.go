// Package actions implements the action module registry and the two
// in-tree modules (webhook, email) that the worker pool dispatches
// through. Every module renders its config against an ActionContext
// using the {{path}} template syntax in template.go.
package actions

import "formrelay.dev/db"

// ActionContext bundles the rows a module needs to render its config and
// execute: the submission being dispatched and its owning endpoint,
// project, and tenant.
type ActionContext struct {
	Submission db.Submission
	Endpoint   db.Endpoint
	Project    db.Project
	Tenant     db.Tenant
}
