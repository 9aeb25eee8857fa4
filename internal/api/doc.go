// Package api exposes the messaging service as a JSON REST API. All routes
// under /api except login require a Bearer token; errors map onto 400/401/403/
// 404/500 with a uniform {"error": ...} body.
package api
