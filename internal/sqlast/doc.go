// Package sqlast defines the dialect-neutral SQL AST produced by lowering.
//
// Every node family is a sealed interface (marker method, unexported) so
// that type switches over Statement, Form, Expr and Operand can be checked
// for exhaustiveness by reviewers and linters. Nodes are immutable once
// built and may be shared between goroutines.
//
// Text is produced by the renderer in package querysql; nothing here knows
// about quoting or placeholders.
package sqlast
