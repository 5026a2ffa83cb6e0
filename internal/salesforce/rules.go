package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
)

// Rule is a validation rule as presented to the frontend.
type Rule struct {
	ID             string `json:"Id"`
	ValidationName string `json:"ValidationName"`
	Active         bool   `json:"Active"`
	EntityName     string `json:"EntityName"`
}

// ruleIDRe matches the shape of a Salesforce record ID. Ownership is checked
// by the org itself when the ID is used.
var ruleIDRe = regexp.MustCompile(`^[a-zA-Z0-9]{15,18}$`)

// ValidRuleID reports whether id has the shape of a Salesforce record ID.
func ValidRuleID(id string) bool {
	return ruleIDRe.MatchString(id)
}

const listRulesQuery = `SELECT Id, ValidationName, Active, EntityDefinition.QualifiedApiName FROM ValidationRule ORDER BY ValidationName`

type ruleRecord struct {
	ID               string `json:"Id"`
	ValidationName   string `json:"ValidationName"`
	Active           bool   `json:"Active"`
	EntityDefinition *struct {
		QualifiedAPIName string `json:"QualifiedApiName"`
	} `json:"EntityDefinition"`
}

// ListRules queries every validation rule in the org, ordered by name.
// Missing names are normalized so the frontend always has something to show.
func (c *Client) ListRules(ctx context.Context, tokens Tokens) ([]Rule, error) {
	data, err := c.query(ctx, tokens, listRulesQuery)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Records []ruleRecord `json:"records"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode rule list: %w", err)
	}

	rules := make([]Rule, 0, len(resp.Records))
	for _, rec := range resp.Records {
		rule := Rule{
			ID:             rec.ID,
			ValidationName: rec.ValidationName,
			Active:         rec.Active,
			EntityName:     "Unknown",
		}
		if rule.ValidationName == "" {
			rule.ValidationName = "Unnamed Rule"
		}
		if rec.EntityDefinition != nil && rec.EntityDefinition.QualifiedAPIName != "" {
			rule.EntityName = rec.EntityDefinition.QualifiedAPIName
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// ruleMetadata is the Metadata shape required by a ValidationRule PATCH.
// Salesforce rejects partial metadata, so every required field carries a
// fallback when the fetched metadata omits it.
type ruleMetadata struct {
	Active                bool   `json:"active"`
	Description           string `json:"description"`
	ErrorConditionFormula string `json:"errorConditionFormula"`
	ErrorDisplayField     string `json:"errorDisplayField,omitempty"`
	ErrorMessage          string `json:"errorMessage"`
}

type toggleRecord struct {
	ID       string `json:"Id"`
	FullName string `json:"FullName"`
	Metadata *struct {
		Description           string `json:"description"`
		ErrorConditionFormula string `json:"errorConditionFormula"`
		ErrorDisplayField     string `json:"errorDisplayField"`
		ErrorMessage          string `json:"errorMessage"`
	} `json:"Metadata"`
}

// ToggleRule activates or deactivates a single validation rule. The current
// metadata is fetched first because the Tooling API requires the full
// Metadata payload on update. An unknown ID fails before any write.
func (c *Client) ToggleRule(ctx context.Context, tokens Tokens, ruleID string, active bool) error {
	if !ValidRuleID(ruleID) {
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    "INVALID_RULE_ID",
			Message: "Invalid validation rule ID format",
		}
	}

	fetchQuery := fmt.Sprintf("SELECT Id, FullName, Metadata FROM ValidationRule WHERE Id = '%s'", ruleID)
	data, err := c.query(ctx, tokens, fetchQuery)
	if err != nil {
		return err
	}

	var resp struct {
		Records []toggleRecord `json:"records"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("failed to decode rule metadata: %w", err)
	}
	if len(resp.Records) == 0 {
		return &APIError{
			Status:  http.StatusNotFound,
			Code:    "NOT_FOUND",
			Message: "Validation rule not found",
		}
	}

	meta := ruleMetadata{
		Active:                active,
		Description:           "",
		ErrorConditionFormula: "TRUE",
		ErrorMessage:          "Validation error",
	}
	if m := resp.Records[0].Metadata; m != nil {
		meta.Description = m.Description
		if m.ErrorConditionFormula != "" {
			meta.ErrorConditionFormula = m.ErrorConditionFormula
		}
		meta.ErrorDisplayField = m.ErrorDisplayField
		if m.ErrorMessage != "" {
			meta.ErrorMessage = m.ErrorMessage
		}
	}

	body := map[string]any{"Metadata": meta}
	_, err = c.do(ctx, tokens, http.MethodPatch, c.toolingPath("/sobjects/ValidationRule/"+ruleID), body)
	return err
}

// query runs a SOQL query through the Tooling API query endpoint.
func (c *Client) query(ctx context.Context, tokens Tokens, soql string) ([]byte, error) {
	path := c.toolingPath("/query?q=" + url.QueryEscape(soql))
	return c.do(ctx, tokens, http.MethodGet, path, nil)
}
