// Package validation validates request descriptors before they reach the
// executor.
//
// Struct tag validation uses go-playground/validator with two extra tags:
// httpurl (absolute http/https URL) and httpmethod (one of Methods, or
// empty). Field names in errors come from json tags.
//
//	type Request struct {
//	    URL    string `json:"url" validate:"required,httpurl"`
//	    Method string `json:"method" validate:"httpmethod"`
//	}
//	err := validation.Validate(req)
//
// Header and path values of bridge calls go through Params:
//
//	p := validation.NewParams().ListenerID("X-Listener-ID", header)
//	id := p.RequestID("id", c.Param("id"))
//	if err := p.Err(); err != nil { ... }
package validation
