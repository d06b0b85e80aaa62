// Package openaicompat implements llm.Provider over the OpenAI Chat Completions
// wire format.
//
// The same client serves the public OpenAI API, Azure OpenAI deployments and any
// OpenAI-compatible gateway. Azure mode switches the endpoint to
// /openai/deployments/{deployment}/chat/completions?api-version=... and
// authenticates with the api-key header.
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "azure_openai",
//	    APIKey:       cfg.APIKey,
//	    BaseURL:      "https://my-resource.openai.azure.com",
//	    Deployment:   "gpt-4o",
//	    APIVersion:   "2024-10-21",
//	}, logger)
package openaicompat
