package output

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"mend/internal/diag"
	"mend/internal/shared/util"
)

// SARIF v2.1.0 schema – see https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json

const (
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	sarifVersion = "2.1.0"

	toolName    = "mend"
	toolVersion = "1.0.0"
)

// sarifReport is the top-level SARIF document.
type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	ShortDescription sarifMessage           `json:"shortDescription"`
	DefaultConfig    sarifRuleDefaultConfig `json:"defaultConfiguration"`
}

type sarifRuleDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
}

// GenerateSARIF builds a SARIF v2.1.0 document from the unified error
// list. File URIs are made relative to projectRoot so reports are safe
// to share.
func GenerateSARIF(projectRoot string, errs []diag.UnifiedError) ([]byte, error) {
	ruleSet := make(map[string]sarifRule)
	results := make([]sarifResult, 0, len(errs))

	for _, e := range errs {
		ruleID := sarifRuleID(e)
		if _, ok := ruleSet[ruleID]; !ok {
			ruleSet[ruleID] = sarifRule{
				ID:               ruleID,
				Name:             ruleID,
				ShortDescription: sarifMessage{Text: ruleDescription(e)},
				DefaultConfig:    sarifRuleDefaultConfig{Level: sarifLevel(e.Severity)},
			}
		}

		results = append(results, sarifResult{
			RuleID:  ruleID,
			Level:   sarifLevel(e.Severity),
			Message: sarifMessage{Text: e.Message},
			Locations: []sarifLocation{{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{
						URI:       relativeURI(projectRoot, e.FilePath),
						URIBaseID: "SRCROOT",
					},
					Region: &sarifRegion{StartLine: e.Line, StartColumn: e.Character},
				},
			}},
		})
	}

	rules := make([]sarifRule, 0, len(ruleSet))
	for _, id := range util.SortedStringKeys(ruleSet) {
		rules = append(rules, ruleSet[id])
	}

	report := sarifReport{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:    toolName,
				Version: toolVersion,
				Rules:   rules,
			}},
			Results: results,
		}},
	}
	return json.MarshalIndent(report, "", "  ")
}

func sarifRuleID(e diag.UnifiedError) string {
	if e.Code != "" {
		return fmt.Sprintf("%s/%s", e.Source, e.Code)
	}
	return e.Source
}

func ruleDescription(e diag.UnifiedError) string {
	if e.Code != "" {
		return fmt.Sprintf("%s rule %s", e.Source, e.Code)
	}
	return fmt.Sprintf("findings reported by %s", e.Source)
}

func sarifLevel(s diag.Severity) string {
	switch s {
	case diag.SeverityError:
		return "error"
	case diag.SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}

func relativeURI(root, path string) string {
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}
