package usecase

import (
	"github.com/BaSui01/moneta/agent/handoff"
	"github.com/BaSui01/moneta/capability/crm"
	"github.com/BaSui01/moneta/capability/search"
)

// Insurance use case id and agent names.
const (
	InsuranceID      = "fsi_insurance"
	InsCoordinator   = "ins-coordinator"
	InsCRMAgent      = "ins-crm-agent"
	InsPoliciesAgent = "ins-policies-agent"
)

// Insurance returns the insurance advisory workflow definition.
func Insurance() UseCase {
	return UseCase{
		ID: InsuranceID,
		Coordinator: handoff.AgentDefinition{
			Name:         InsCoordinator,
			Description:  "Moneta Insurance Coordinator - routes requests to specialist agents",
			Instructions: insCoordinatorInstructions,
			Coordinator:  true,
		},
		Specialists: []handoff.AgentDefinition{
			{
				Name:         InsCRMAgent,
				Description:  "CRM Insurance Agent - handles client insurance data and policy information",
				Instructions: "You are an Insurance CRM specialist. Help with client insurance data and policy information. Use your CRM functions to retrieve accurate customer policy data. ONLY use the provided functions - don't guess or use general knowledge. If client ID or name is not provided, politely inform the user that you need this information. Focus on policy details, coverage information, effective dates, and benefits.",
				Capabilities: []string{crm.LoadInsuranceByFullName, crm.LoadInsuranceByID, crm.GetPolicyDetails},
			},
			{
				Name:         InsPoliciesAgent,
				Description:  "Policies Agent - provides insurance policy research and product information",
				Instructions: "You are an Insurance Policies specialist. Provide insurance policy information and product research insights. Use the search function to find relevant insurance policy information and product details. Provide CONCISE and actionable insurance insights focusing on coverage details, benefits, and recommendations.",
				Capabilities: []string{search.SearchInsurancePolicies},
			},
		},
	}
}

const insCoordinatorInstructions = `You are the Moneta Insurance Coordinator. Analyze customer requests and route them to the appropriate specialist:
- ins-crm-agent: For client insurance data, policy information, client details, coverage summaries. Use when the request mentions a specific client name or ID and is about their policies.
- ins-policies-agent: For general insurance policy research, product information, coverage details, and policy recommendations.

When you receive a request, immediately call the matching handoff tool (handoff_to_ins-crm-agent or handoff_to_ins-policies-agent) without explaining.
` + handoffInstruction
