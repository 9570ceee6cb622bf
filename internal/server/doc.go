// Package server hosts the optional Fiber diagnostics service that exposes the
// unit registry over HTTP. It attaches recover and request-id middlewares and
// accepts the registry through the narrow UnitRegistry interface so tests can
// inject fakes. Route handlers live in the routes subpackage.
package server
