package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Fixed clarifying questions asked on the opening turn
const (
	PipelineQuestion     = "Which CI/CD system (other than GitHub Actions, GitLab, Jenkins, or Bitbucket) would you like a snippet for?"
	VulnScanQuestion     = "What problem or error are you seeing when you run the fixed snippet?"
	FullRepoScanQuestion = "What specific information or insights are you looking for from the security scan results?"
)

// Scanner invocation details every generated pipeline must keep
const (
	ScannerImage     = "playerunknown23/aegis:latest"
	APIKeyEnv        = "AEGIS_API_KEY"
	ConfigAPIURLEnv  = "CONFIG_API_URL"
	ConfigAPIURLFlag = "--config-api-url"
	ParallelFlag     = "--parallel"
)

// ClarifyingQuestion returns the opening-turn question for a domain, or ""
// when the domain has no two-phase protocol.
func ClarifyingQuestion(d Domain) string {
	switch d {
	case DomainPipelineIntegration:
		return PipelineQuestion
	case DomainVulnScan:
		return VulnScanQuestion
	case DomainFullRepoScan:
		return FullRepoScanQuestion
	default:
		return ""
	}
}

// BuildSystemPrompt renders the system instruction for a new session.
// A nil context is treated as empty.
func BuildSystemPrompt(d Domain, context map[string]any) string {
	if context == nil {
		context = map[string]any{}
	}

	switch d {
	case DomainPipelineIntegration:
		return pipelinePrompt(context)
	case DomainVulnScan:
		return vulnScanPrompt(context)
	case DomainFullRepoScan:
		return fullRepoScanPrompt(context)
	default:
		return genericPrompt()
	}
}

func pipelinePrompt(context map[string]any) string {
	github := asMap(context["github_actions"])
	gitlab := asMap(context["gitlab_ci"])
	jenkins := asMap(context["jenkins_pipeline"])
	bitbucket := asMap(context["bitbucket_pipelines"])

	gitlabJob, ok := gitlab["security-scan"]
	if !ok {
		gitlabJob = gitlab
	}

	var b strings.Builder

	b.WriteString("You are an expert CI/CD assistant. Four concrete pipeline snippets ")
	b.WriteString("(GitHub Actions, GitLab CI, Jenkins, Bitbucket) are provided purely as CONTEXT examples of one canonical task: ")
	b.WriteString("pulling the Aegis docker image, running a scanner container against the repository workspace, ")
	b.WriteString("passing repository metadata through environment variables, mounting a results directory, ")
	fmt.Fprintf(&b, "accepting an API key through an environment variable, supporting a %s option and a '%s' flag, ", ConfigAPIURLFlag, ParallelFlag)
	b.WriteString("and handling exit codes safely.\n\n")

	b.WriteString("The example snippets are context only. NEVER echo them back or offer any of the four original pipelines as your answer.\n\n")

	b.WriteString("IMPORTANT: When you later generate a snippet for a different CI system (for example CircleCI, Azure Pipelines or Travis CI), ")
	b.WriteString("the generated job MUST preserve the operational details shown in the examples. The generated snippet must:\n")
	fmt.Fprintf(&b, "  - run `docker pull %s || true` before starting the container, so a failed pull does not fail the job,\n", ScannerImage)
	b.WriteString("  - use `set -euo pipefail` (or the CI-equivalent strict shell flags) in script blocks so errors, unset variables and pipe failures stop the job,\n")
	b.WriteString("  - mount the repository workspace into the container read-only and mount a results directory read-write,\n")
	b.WriteString("  - pass repository metadata environment variables (repository path/name, ref/branch, commit SHA) into the container using the target CI's variable syntax,\n")
	fmt.Fprintf(&b, "  - inject the API credential through an environment variable named `%s` (or the CI's secret-reference mechanism),\n", APIKeyEnv)
	fmt.Fprintf(&b, "  - include `%s` only when %s is set, using the target CI's conditional or templating idiom,\n", ConfigAPIURLFlag, ConfigAPIURLEnv)
	fmt.Fprintf(&b, "  - always pass the `%s` flag to the scanner,\n", ParallelFlag)
	b.WriteString("  - print the scanner exit code and return exactly that exit code from the job, so a non-zero scan result fails the job.\n\n")

	b.WriteString("ON THE INITIAL TURN (when you receive ONLY this context and no user message): DO NOT perform analysis and DO NOT generate a snippet. ")
	b.WriteString("Ask exactly ONE short clarifying question and then stop. The exact question to ask is:\n\n")
	fmt.Fprintf(&b, "%q\n\n", PipelineQuestion)

	b.WriteString("After the user names a target CI system, produce a single ready-to-paste pipeline snippet in that system's idiomatic syntax ")
	b.WriteString("that reproduces the behavior of the examples. Output EXACTLY one fenced code block containing the snippet, ")
	b.WriteString("followed by a 1-3 line note explaining where to paste it and which secrets or variables to configure. Output nothing else.\n\n")

	fmt.Fprintf(&b, "GitHub Actions example (context):\n```\n%s\n```\n\n", text(github["run"]))
	fmt.Fprintf(&b, "GitLab CI example (context):\n```\n%s\n```\n\n", indentJSON(gitlabJob))
	fmt.Fprintf(&b, "Jenkins pipeline example (context):\n```\n%s\n```\n\n", lines(jenkins["steps"]))
	fmt.Fprintf(&b, "Bitbucket pipeline example (context):\n```\n%s\n```\n\n", lines(bitbucket["script"]))

	return b.String()
}

func vulnScanPrompt(context map[string]any) string {
	var b strings.Builder

	b.WriteString("You are a security code analysis assistant. The user has provided a vulnerable code snippet ")
	b.WriteString("and a proposed fix as context.\n\n")

	b.WriteString("ON THE INITIAL TURN (when you receive ONLY this context and no user message): DO NOT perform analysis and DO NOT provide a fixed snippet. ")
	b.WriteString("Ask exactly ONE short clarifying question that prompts the user to describe the visible problem or error they see with the proposed fix. ")
	b.WriteString("Do not include any analysis, explanation or corrected code in that reply. Wait for the user's answer. The exact question to ask is:\n\n")
	fmt.Fprintf(&b, "%q\n\n", VulnScanQuestion)

	b.WriteString("When the user describes the problem, perform a step-by-step comparison of the vulnerable code and the proposed fix, ")
	b.WriteString("point out any issues that remain, and provide a corrected, secure code snippet together with testing tips.\n\n")

	fmt.Fprintf(&b, "Vulnerable code (context):\n```python\n%s\n```\n\n", text(context["code_snippet"]))
	fmt.Fprintf(&b, "Proposed fix (context):\n```python\n%s\n```\n", text(context["fixed_code"]))

	return b.String()
}

func fullRepoScanPrompt(context map[string]any) string {
	report, ok := context["scan_report"]
	if !ok {
		report = context
	}

	var b strings.Builder

	b.WriteString("You are a software security assistant. The context below holds the results of a full repository security scan.\n\n")

	b.WriteString("ON THE INITIAL TURN (when you receive ONLY this context and no user message): DO NOT perform analysis. ")
	b.WriteString("Ask exactly ONE short clarifying question about what the user wants to learn from the scan results, and then stop. ")
	b.WriteString("The exact question to ask is:\n\n")
	fmt.Fprintf(&b, "%q\n\n", FullRepoScanQuestion)

	b.WriteString("When the user states what they need, analyze the findings, explain their impact, ")
	b.WriteString("and give clear step-by-step remediation actions.\n\n")

	fmt.Fprintf(&b, "Scan report (JSON):\n```\n%s\n```\n", indentJSON(report))

	return b.String()
}

func genericPrompt() string {
	return "You are a helpful, concise, and technically knowledgeable assistant. " +
		"The user may ask questions about CI/CD, application security, DevSecOps, pipelines, vulnerabilities, or code fixes. " +
		"Answer clearly, with minimal assumptions, and include code snippets where appropriate. " +
		"If a question is unrelated to security or DevOps, you may still help in a general programming context."
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// text renders a scalar verbatim; strings are not quoted.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

// lines joins a list of steps with newlines.
func lines(v any) string {
	switch t := v.(type) {
	case []string:
		return strings.Join(t, "\n")
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, text(item))
		}
		return strings.Join(parts, "\n")
	default:
		return text(v)
	}
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
