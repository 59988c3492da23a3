// Package prompt turns a domain tag and an opaque context payload into the
// system instruction that opens a chat session.
//
// Invariants:
// - BuildSystemPrompt is pure and never fails; unknown domains use the Generic instruction.
// - Protocol domains embed the supplied context verbatim and carry one fixed clarifying question.
// - Whether the model honors the opening-turn protocol is not checked here or anywhere else.
//
// Usage:
//
//	domain := prompt.ParseDomain("Vuln Scan")
//	text := prompt.BuildSystemPrompt(domain, map[string]any{
//		"code_snippet": "eval(input())",
//		"fixed_code":   "ast.literal_eval(input())",
//	})
//	_ = text
package prompt
