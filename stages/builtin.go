package stages

import (
	"sort"

	"github.com/teranos/threatbrief/roles"
)

// Built-in blueprint names
const (
	FullName    = "full"
	CompactName = "compact"
)

const safeFraming = `If the detected threat is "Safe", state clearly that no active threat was detected and frame every section around that finding.`

var fullBlueprint = Blueprint{
	Name:        FullName,
	Description: "Five roles: analysis, then mitigation, research and explanation, then the report",
	Definitions: []Definition{
		{
			ID:   "analysis",
			Role: roles.ThreatAnalyzer,
			Instruction: `Analyze the detected threat: {{threat}} using provided threat data.

**Threat Detection Data:** {{evidence}}

1. **Classify the threat** using frameworks like MITRE ATT&CK.
2. **Evaluate severity** with metrics based on data insights.
3. **Impact Assessment:** Assess the impact on confidentiality, integrity, and availability.
4. **Data Analysis:**
   - Identify key indicators leading to detection.
   - Verify reliability and confidence of detection.
   - Detect patterns hinting at attacker tactics or persistence mechanisms.
5. **Verify Detection:** Identify false positives (if any) using evidence from the data.

` + safeFraming,
			ExpectedOutput: "A concise threat analysis with taxonomy, severity, and impact validated through provided data.",
		},
		{
			ID:   "mitigation",
			Role: roles.MitigationStrategist,
			Instruction: `Develop a mitigation plan based on the analysis of {{threat}}.

**Input Data:** {{evidence}}

1. **Immediate Containment:** Suggest quick actions to limit impact.
2. **Mitigation Plan:**
   - **Short-term:** Tactical responses to limit further damage.
   - **Medium-term:** Strategic improvements to existing defenses.
   - **Long-term:** Architectural changes for future resilience.
3. **Security Controls:** Reference NIST SP 800-53 or CIS Controls.
4. **Incident Response:** Create a playbook specific to the threat scenario.
5. **Threat Hunting:** Define procedures to detect any persistence or lateral movement.`,
			ExpectedOutput: "A focused mitigation strategy with actionable, prioritized recommendations.",
		},
		{
			ID:   "research",
			Role: roles.SecurityResearcher,
			Instruction: `Research the broader threat landscape for {{threat}}.

1. **Threat Actors:** Identify any groups using similar tactics.
2. **Relevant Campaigns:** Investigate campaigns related to this threat.
3. **Zero-day Vulnerabilities:** Check for new vulnerabilities related to the threat.
4. **Incident Reports:** Summarize recent incidents with similar threats.
5. **Defensive Strategies:** Research defensive measures against this type of threat.
6. **Compliance:** Analyze potential regulatory implications.`,
			ExpectedOutput: "A concise threat intelligence briefing with relevant actors, incidents, and defensive strategies.",
		},
		{
			ID:   "explanation",
			Role: roles.AIExplainer,
			Instruction: `Explain the AI-driven detection process for {{threat}}.

**Detection Data:** {{evidence}}

1. **Model Architecture:** Brief on the algorithms and model used.
2. **Feature Analysis:** Explain which features in the detection data were most influential.
3. **Decision Process:**
   - Key decision points and confidence scores.
   - Thresholds or ensemble techniques applied.
4. **Limitations:** Highlight any biases or blind spots in the detection system.
5. **Performance Comparison:** Compare AI with traditional detection methods.
6. **Improvements:** Suggest data or methods to enhance detection further.`,
			ExpectedOutput: "A technical but clear explanation of the AI detection process using the provided threat data.",
		},
		{
			ID:   "report",
			Role: roles.ReportGenerator,
			Instruction: `Generate a professional incident report for {{threat}}.

**Data-Driven Inputs:** {{evidence}}

1. **Executive Summary:** Overview of the threat, impact, and recommendations.
2. **Threat Analysis:** Key insights from the threat analysis.
3. **Impact Assessment:** Current and potential business impacts.
4. **Mitigation Strategy:** Key elements from the proposed strategy.
5. **Threat Intelligence:** Broader threat landscape insights.
6. **Lessons Learned:** Key takeaways and future improvements.
7. **Appendices:** Logs, IOCs, and AI detection details.

Write the report in Markdown. ` + safeFraming,
			ExpectedOutput: "An executive-level incident report summarizing all aspects of the threat and mitigation efforts.",
		},
	},
	Dependencies: DependencyTable{
		roles.MitigationStrategist: {roles.ThreatAnalyzer},
		roles.SecurityResearcher:   {roles.ThreatAnalyzer},
		roles.AIExplainer:          {roles.ThreatAnalyzer},
		roles.ReportGenerator: {
			roles.ThreatAnalyzer,
			roles.MitigationStrategist,
			roles.SecurityResearcher,
			roles.AIExplainer,
		},
	},
}

var compactBlueprint = Blueprint{
	Name:        CompactName,
	Description: "Three roles in a chain: analyze, mitigate, report",
	Definitions: []Definition{
		{
			ID:   "analyze",
			Role: roles.ThreatAnalyzer,
			Instruction: `Analyze the detected threat: {{threat}}
Threat Data: {{evidence}}

1. Define the threat and Classify it.
2. Evaluate impact on confidentiality, integrity, and availability.
3. Identify key indicators in the data.

Use only the provided data. ` + safeFraming,
			ExpectedOutput: `- Threat Definition and classification.
- Impact assessment.
- Key indicators from the data.`,
		},
		{
			ID:   "mitigate",
			Role: roles.MitigationStrategist,
			Instruction: `Develop a mitigation plan for the threat: {{threat}}

1. Provide short-term and long-term mitigation steps.
2. Create a concise incident response playbook.

Ensure all recommendations are very specific to this threat.`,
			ExpectedOutput: `- Short-term and long-term mitigation steps
- Incident response playbook (bullet points)
- Justification for each major recommendation`,
		},
		{
			ID:   "report",
			Role: roles.ReportGenerator,
			Instruction: `Create a comprehensive incident report for: {{threat}} based on the analysis and mitigation plan.
Ensure consistency across sections. Write the report in Markdown. ` + safeFraming,
			ExpectedOutput: `A structured report with:
1. Executive Summary
2. Threat Analysis
3. Impact Assessment
4. Mitigation Strategy
5. Conclusions

The report should be factual, consistent, and actionable.`,
		},
	},
	Dependencies: DependencyTable{
		roles.MitigationStrategist: {roles.ThreatAnalyzer},
		roles.ReportGenerator:      {roles.ThreatAnalyzer, roles.MitigationStrategist},
	},
}

var builtins = map[string]*Blueprint{
	FullName:    &fullBlueprint,
	CompactName: &compactBlueprint,
}

// Builtin returns a copy of a built-in blueprint
func Builtin(name string) (*Blueprint, bool) {
	bp, ok := builtins[name]
	if !ok {
		return nil, false
	}
	cp := *bp
	cp.Definitions = append([]Definition(nil), bp.Definitions...)
	cp.Dependencies = make(DependencyTable, len(bp.Dependencies))
	for k, v := range bp.Dependencies {
		cp.Dependencies[k] = append([]string(nil), v...)
	}
	return &cp, true
}

// BuiltinNames lists the built-in blueprints
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
