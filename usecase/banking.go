package usecase

import (
	"github.com/BaSui01/moneta/agent/handoff"
	"github.com/BaSui01/moneta/capability/crm"
	"github.com/BaSui01/moneta/capability/news"
	"github.com/BaSui01/moneta/capability/search"
)

// Banking use case id and agent names.
const (
	BankingID       = "fsi_banking"
	BankCoordinator = "bank-coordinator"
	BankCRMAgent    = "bank-crm-agent"
	BankCIOAgent    = "bank-cio-agent"
	BankFundsAgent  = "bank-funds-agent"
	BankNewsAgent   = "bank-news-agent"
)

// Banking returns the wealth-management workflow definition.
func Banking() UseCase {
	return UseCase{
		ID: BankingID,
		Coordinator: handoff.AgentDefinition{
			Name:         BankCoordinator,
			Description:  "Moneta Banking Coordinator - routes requests to specialist agents",
			Instructions: bankCoordinatorInstructions,
			Coordinator:  true,
		},
		Specialists: []handoff.AgentDefinition{
			{
				Name:         BankCRMAgent,
				Description:  "CRM Banking Agent - handles client data and portfolio information",
				Instructions: "You are a CRM specialist. Help with client data and portfolio information. Use your CRM functions to retrieve accurate customer data. ONLY use the provided functions - don't guess or use general knowledge. If client ID or name is not provided, politely inform the user that you need this information.",
				Capabilities: []string{crm.LoadByFullName, crm.LoadByID},
			},
			{
				Name:         BankCIOAgent,
				Description:  "CIO Agent - provides investment research and market analysis",
				Instructions: "You are a Chief Investment Office specialist. Provide investment research and strategic insights. Use the search function to find relevant CIO views and market analysis. Provide CONCISE and actionable investment recommendations.",
				Capabilities: []string{search.SearchCIO},
			},
			{
				Name:         BankFundsAgent,
				Description:  "Funds Agent - provides funds and ETF information",
				Instructions: "You are a Funds specialist. Provide information about investment funds and ETFs. Use the search function to find relevant fund information. Explain fund characteristics, performance, and suitability clearly and concisely.",
				Capabilities: []string{search.SearchFundsDetails},
			},
			{
				Name:         BankNewsAgent,
				Description:  "News Agent - fetches investment news for portfolio positions",
				Instructions: "You are a News specialist for Moneta Banking. You fetch and analyze the latest investment news for specific stock positions. Use the fetch_news function to retrieve news for stock ticker symbols. When presenting news, summarize the key headlines and their potential impact on the portfolio.",
				Capabilities: []string{news.FetchNews},
			},
		},
	}
}

const bankCoordinatorInstructions = `You are the Moneta Banking Coordinator. Analyze customer requests and route them to the appropriate specialist:
- bank-crm-agent: For client data, portfolio information, account details. Use when the request mentions a specific client name or ID.
- bank-cio-agent: For investment research, market analysis, CIO views and recommendations.
- bank-funds-agent: For information about funds, ETFs, their performance and suitability.
- bank-news-agent: For the latest news about the stock tickers in a client's portfolio.

When you receive a request, immediately call the matching handoff tool (handoff_to_bank-crm-agent, handoff_to_bank-cio-agent, handoff_to_bank-funds-agent, or handoff_to_bank-news-agent) without explaining.
` + handoffInstruction
