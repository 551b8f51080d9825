// Package roles defines the specialised roles that frame each pipeline stage.
//
// A Role is pure configuration: a name, a goal, a backstory and an operating
// constraint. Roles never call each other; a role only sees another role's
// output through the dependency edges a stage blueprint declares.
package roles

import (
	"fmt"
	"strings"
)

// Built-in role names
const (
	ThreatAnalyzer       = "Threat_Analyzer_Agent"
	MitigationStrategist = "Mitigation_Strategist_Agent"
	SecurityResearcher   = "Security_Researcher_Agent"
	AIExplainer          = "AI_Explainer_Agent"
	ReportGenerator      = "Report_Generator_Agent"
)

// DefaultConstraint is the operating constraint every built-in role carries
const DefaultConstraint = "Use only the provided data; do not speculate."

// Role is a named specialisation used to frame one stage's generation prompt
type Role struct {
	Name            string `yaml:"name" json:"name"`
	Goal            string `yaml:"goal" json:"goal"`
	Backstory       string `yaml:"backstory,omitempty" json:"backstory,omitempty"`
	Constraint      string `yaml:"constraint" json:"constraint"`
	AllowDelegation bool   `yaml:"allow_delegation" json:"allow_delegation"`
}

// Description renders the role as the system prompt sent with each stage
func (r Role) Description() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n", r.Name)
	fmt.Fprintf(&b, "Goal: %s\n", r.Goal)
	if r.Backstory != "" {
		fmt.Fprintf(&b, "Background: %s\n", r.Backstory)
	}
	if r.Constraint != "" {
		fmt.Fprintf(&b, "Constraint: %s\n", r.Constraint)
	}
	b.WriteString("Work only on your own task. Do not hand work to other roles.")
	return b.String()
}

// DisplayName turns "Threat_Analyzer_Agent" into "Threat Analyzer"
func (r Role) DisplayName() string {
	name := strings.TrimSuffix(r.Name, "_Agent")
	return strings.ReplaceAll(name, "_", " ")
}

var defaults = []Role{
	{
		Name:       ThreatAnalyzer,
		Goal:       "Analyze detected threats and provide detailed information about their nature, potential impact, and severity.",
		Backstory:  "You are an expert in cyber threat analysis with years of experience in identifying and categorizing various types of cyber attacks.",
		Constraint: DefaultConstraint,
	},
	{
		Name:       MitigationStrategist,
		Goal:       "Develop and propose mitigation strategies and countermeasures based on the analyzed threat.",
		Backstory:  "Your expertise lies in creating effective defense strategies against various cyber threats, ensuring robust security postures for organizations.",
		Constraint: DefaultConstraint,
	},
	{
		Name:       SecurityResearcher,
		Goal:       "Research and provide context on the latest cybersecurity trends, similar threats, and best practices relevant to the detected incident.",
		Backstory:  "Your continuous monitoring of the cybersecurity landscape allows you to provide valuable insights and up-to-date information on emerging threats.",
		Constraint: DefaultConstraint,
	},
	{
		Name:       AIExplainer,
		Goal:       "Translate complex AI-driven threat detection results into clear, understandable explanations for both technical and non-technical audiences.",
		Backstory:  "You specialize in making AI and machine learning concepts accessible, bridging the gap between advanced technology and practical understanding.",
		Constraint: DefaultConstraint,
	},
	{
		Name:       ReportGenerator,
		Goal:       "Compile all the information from other agents into a comprehensive, well-structured cybersecurity incident report.",
		Backstory:  "You excel at creating clear, concise, and informative reports that effectively communicate complex cybersecurity incidents to various stakeholders.",
		Constraint: DefaultConstraint,
	},
}
