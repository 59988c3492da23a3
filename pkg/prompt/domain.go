package prompt

import "strings"

// Domain selects the conversational contract for a session
type Domain string

const (
	DomainPipelineIntegration Domain = "PipelineIntegration"
	DomainVulnScan            Domain = "VulnScan"
	DomainFullRepoScan        Domain = "FullRepoScan"
	DomainGeneric             Domain = "Generic"
)

// Display tags sent by existing clients
const (
	TagPipelineIntegration = "Pipeline Integration"
	TagVulnScan            = "Vuln Scan"
	TagFullRepoScan        = "Full Repo Scan"
)

// ParseDomain resolves a wire tag to a Domain. Both the display tags and the
// canonical identifiers are accepted; anything else resolves to DomainGeneric.
func ParseDomain(tag string) Domain {
	switch strings.TrimSpace(tag) {
	case TagPipelineIntegration, string(DomainPipelineIntegration):
		return DomainPipelineIntegration
	case TagVulnScan, string(DomainVulnScan):
		return DomainVulnScan
	case TagFullRepoScan, string(DomainFullRepoScan):
		return DomainFullRepoScan
	default:
		return DomainGeneric
	}
}

// HasClarifyingProtocol reports whether the domain opens with a clarifying question
func (d Domain) HasClarifyingProtocol() bool {
	return ClarifyingQuestion(d) != ""
}

// String returns the canonical identifier
func (d Domain) String() string {
	return string(d)
}
