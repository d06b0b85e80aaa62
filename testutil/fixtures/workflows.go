// Package fixtures 提供测试用的示例工作流定义。
package fixtures

import "github.com/BaSui01/moneta/agent/handoff"

// Agent names used by the sample workflow.
const (
	Coordinator = "bank-coordinator"
	CRMAgent    = "bank-crm-agent"
	NewsAgent   = "bank-news-agent"
)

// BankingCoordinator returns a coordinator definition without capabilities.
func BankingCoordinator() handoff.AgentDefinition {
	return handoff.AgentDefinition{
		Name:         Coordinator,
		Description:  "Routes requests to the right specialist.",
		Instructions: "Route the request.",
		Coordinator:  true,
	}
}

// BankingSpecialists returns two specialists without capabilities.
func BankingSpecialists() []handoff.AgentDefinition {
	return []handoff.AgentDefinition{
		{Name: CRMAgent, Description: "Client data.", Instructions: "Answer client data questions."},
		{Name: NewsAgent, Description: "Portfolio news.", Instructions: "Answer news questions."},
	}
}

// BankingWorkflow builds the sample workflow or panics.
func BankingWorkflow(opts ...handoff.WorkflowOption) *handoff.Workflow {
	wf, err := handoff.NewWorkflow(BankingCoordinator(), BankingSpecialists(), opts...)
	if err != nil {
		panic(err)
	}
	return wf
}
