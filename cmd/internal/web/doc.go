// Package web serves Lyceum's page routes: the landing redirect, the
// login page and the dashboard shells. Pages are thin server-rendered
// html/template shells; the landing route and the dashboard gate reuse
// the same session decision as the reactive redirector.
package web
