// Package httpapi serves an [exec.Exec] over a JSON REST API built on gin.
//
// Routes:
//
//	POST   /v1/execute              run a script (protocol.ExecuteRequest)
//	GET    /v1/tools?q=&limit=      list tools, or search when q is set
//	POST   /v1/tools                register a shell tool
//	GET    /v1/tools/:name          describe a tool
//	DELETE /v1/tools/:name          unregister a tool
//	POST   /v1/tools/:name/invoke   call a tool directly
//	GET    /metrics                 Prometheus metrics, when configured
//	GET    /healthz                 liveness
//
// Errors are returned as {"error": "..."}. A script that fails still
// answers 200 with success=false in the body.
package httpapi
