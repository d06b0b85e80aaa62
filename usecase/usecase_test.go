package usecase_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/moneta/agent/handoff"
	"github.com/BaSui01/moneta/agent/orchestrator"
	"github.com/BaSui01/moneta/capability/crm"
	"github.com/BaSui01/moneta/capability/news"
	"github.com/BaSui01/moneta/capability/search"
	"github.com/BaSui01/moneta/config"
	"github.com/BaSui01/moneta/llm/tools"
	"github.com/BaSui01/moneta/testutil"
	"github.com/BaSui01/moneta/testutil/mocks"
	"github.com/BaSui01/moneta/types"
	"github.com/BaSui01/moneta/usecase"
)

func TestCatalog(t *testing.T) {
	all := usecase.All()
	require.Len(t, all, 2)
	assert.Equal(t, usecase.BankingID, all[0].ID)
	assert.Equal(t, usecase.InsuranceID, all[1].ID)

	u, ok := usecase.Lookup("fsi_insurance")
	require.True(t, ok)
	assert.Equal(t, usecase.InsCoordinator, u.Coordinator.Name)

	_, ok = usecase.Lookup("fsi_retail")
	assert.False(t, ok)
}

func TestUseCases_CoordinatorPromptsNameEveryHandoffTool(t *testing.T) {
	for _, u := range usecase.All() {
		assert.True(t, u.Coordinator.Coordinator, u.ID)
		assert.Empty(t, u.Coordinator.Capabilities, u.ID)
		for _, s := range u.Specialists {
			assert.Contains(t, u.Coordinator.Instructions, handoff.HandoffToolPrefix+s.Name, u.ID)
			assert.NotEmpty(t, s.Capabilities, s.Name)
		}
	}
}

func TestUseCase_Capabilities(t *testing.T) {
	assert.Equal(t, []string{
		news.FetchNews,
		crm.LoadByFullName,
		crm.LoadByID,
		search.SearchCIO,
		search.SearchFundsDetails,
	}, usecase.Banking().Capabilities())

	assert.Equal(t, []string{
		crm.GetPolicyDetails,
		crm.LoadInsuranceByFullName,
		crm.LoadInsuranceByID,
		search.SearchInsurancePolicies,
	}, usecase.Insurance().Capabilities())
}

func TestNewCapabilityRegistry_ResolvesEveryUseCase(t *testing.T) {
	reg, err := usecase.NewCapabilityRegistry(config.DefaultCapabilitiesConfig(), zap.NewNop())
	require.NoError(t, err)

	assert.Len(t, reg.Names(), 9)
	for _, u := range usecase.All() {
		assert.NoError(t, reg.Validate(u.Capabilities()), u.ID)
	}
}

func TestNewCapabilityRegistry_AzureSearchAndCacheTTL(t *testing.T) {
	cfg := config.DefaultCapabilitiesConfig()
	cfg.Search.Endpoint = "https://search.example.net"
	cfg.Cache.Enabled = true

	reg, err := usecase.NewCapabilityRegistry(cfg, nil)
	require.NoError(t, err)

	_, meta, err := reg.Get(search.SearchCIO)
	require.NoError(t, err)
	assert.Equal(t, cfg.Cache.SearchTTL, meta.CacheTTL)

	_, meta, err = reg.Get(news.FetchNews)
	require.NoError(t, err)
	assert.Equal(t, cfg.Cache.NewsTTL, meta.CacheTTL)

	_, meta, err = reg.Get(crm.LoadByID)
	require.NoError(t, err)
	assert.Zero(t, meta.CacheTTL)
}

func TestNewCapabilityRegistry_MissingIndexName(t *testing.T) {
	cfg := config.DefaultCapabilitiesConfig()
	cfg.Search.Endpoint = "https://search.example.net"
	cfg.Search.FundsIndex = ""

	_, err := usecase.NewCapabilityRegistry(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), search.SearchFundsDetails)
}

func TestBuildFunc_RequiresProvider(t *testing.T) {
	reg, err := usecase.NewCapabilityRegistry(config.DefaultCapabilitiesConfig(), nil)
	require.NoError(t, err)

	_, _, err = usecase.Banking().BuildFunc(usecase.Dependencies{Registry: reg})(context.Background())
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = usecase.Banking().BuildFunc(usecase.Dependencies{Registry: reg, Provider: mocks.NewMockProvider()})(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildFunc_UnknownCapabilityFailsBuild(t *testing.T) {
	u := usecase.Banking()
	u.Specialists[0].Capabilities = []string{"load_from_mainframe"}

	_, _, err := u.BuildFunc(usecase.Dependencies{
		Registry: tools.NewDefaultRegistry(nil),
		Provider: mocks.NewMockProvider(),
	})(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUnknownCapability))
}

func TestNewRegistry_BankingConversationThroughCRM(t *testing.T) {
	reg, err := usecase.NewCapabilityRegistry(config.DefaultCapabilitiesConfig(), nil)
	require.NoError(t, err)

	provider := mocks.NewMockProvider().
		ThenToolCall(handoff.HandoffToolPrefix+usecase.BankCRMAgent, map[string]string{"note": "client lookup"}).
		ThenToolCall(crm.LoadByID, map[string]string{"client_id": "123456"}).
		ThenReply("Pete Mitchell holds MSFT, AAPL, NVDA, VOO and US10Y.").
		ThenReply("")

	orchestrators, err := usecase.NewRegistry(usecase.Dependencies{
		Provider: provider,
		Registry: reg,
		Runner:   handoff.LLMRunnerConfig{Model: "gpt-4o"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{usecase.BankingID, usecase.InsuranceID}, orchestrators.UseCases())

	o, ok := orchestrators.Get(usecase.BankingID)
	require.True(t, ok)

	conv := types.Conversation{types.NewUserMessage("What does client 123456 hold?")}
	reply := o.ProcessConversation(testutil.TestContext(t), "u-1", conv, "s-1")

	assert.Equal(t, usecase.BankCRMAgent, reply.Name)
	assert.Equal(t, types.RoleAssistant, reply.Role)
	assert.Contains(t, reply.Content, "Pete Mitchell")

	calls := provider.Calls()
	require.Len(t, calls, 4)
	// the specialist's second round sees the CRM payload as a tool message
	last := calls[2].Messages[len(calls[2].Messages)-1]
	assert.Equal(t, crm.LoadByID, last.Name)
	assert.True(t, strings.Contains(last.Content, "Pete Mitchell"), last.Content)
	// the coordinator is offered one handoff tool per specialist
	assert.Len(t, calls[0].Tools, len(usecase.Banking().Specialists))
}

func TestNewRegistry_WarmupFailsWithoutProvider(t *testing.T) {
	reg, err := usecase.NewCapabilityRegistry(config.DefaultCapabilitiesConfig(), nil)
	require.NoError(t, err)

	orchestrators, err := usecase.NewRegistry(usecase.Dependencies{Registry: reg})
	require.NoError(t, err)
	assert.Error(t, orchestrators.Warmup(context.Background()))

	o, ok := orchestrators.Get(usecase.InsuranceID)
	require.True(t, ok)
	reply := o.ProcessConversation(context.Background(), "u-1", types.Conversation{types.NewUserMessage("hi")}, "s-1")
	assert.Equal(t, orchestrator.ErrorText, reply.Content)
	assert.Equal(t, usecase.InsCoordinator, reply.Name)
}
