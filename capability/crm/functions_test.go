package crm

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/moneta/llm"
	"github.com/BaSui01/moneta/llm/tools"
)

func decode(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestLoadClientByFullName_CaseInsensitive(t *testing.T) {
	f := NewFunctions(NewStore(""), nil)

	raw, err := f.LoadClientByFullName(context.Background(), json.RawMessage(`{"client_fullname":"pete MITCHELL"}`))
	require.NoError(t, err)

	out := decode(t, raw)
	assert.Equal(t, "success", out["status"])
	client := out["client"].(map[string]any)
	assert.Equal(t, "123456", client["clientID"])
	assert.Contains(t, client, "portfolio")
	assert.Contains(t, client, "declared_source_of_wealth")
}

func TestLoadClientByID_NotFound(t *testing.T) {
	f := NewFunctions(NewStore(""), nil)

	_, err := f.LoadClientByID(context.Background(), json.RawMessage(`{"client_id":"999"}`))
	require.Error(t, err)
	assert.Equal(t, "Client with ID '999' not found in CRM", err.Error())
}

func TestMissingFileAndInvalidJSON(t *testing.T) {
	ctx := context.Background()

	empty := NewFunctions(NewStoreFS(fstest.MapFS{}), nil)
	_, err := empty.LoadClientByID(ctx, json.RawMessage(`{"client_id":"1"}`))
	require.Error(t, err)
	assert.Equal(t, "CRM data file not found", err.Error())

	broken := NewFunctions(NewStoreFS(fstest.MapFS{
		InsuranceProfileFile: &fstest.MapFile{Data: []byte("{not json")},
	}), nil)
	_, err = broken.LoadInsuranceClientByID(ctx, json.RawMessage(`{"client_id":"1"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid JSON format")
}

func TestMissingArgument(t *testing.T) {
	f := NewFunctions(NewStore(""), nil)
	_, err := f.LoadClientByFullName(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_fullname is required")
}

func TestInsuranceClientAndPolicy(t *testing.T) {
	f := NewFunctions(NewStore(""), nil)
	ctx := context.Background()

	raw, err := f.LoadInsuranceClientByFullName(ctx, json.RawMessage(`{"client_fullname":"Maria Rossi"}`))
	require.NoError(t, err)
	client := decode(t, raw)["client"].(map[string]any)
	assert.Len(t, client["policies"], 2)

	raw, err = f.PolicyDetails(ctx, json.RawMessage(`{"client_id":"789012","policy_no":"HOME-2023-017"}`))
	require.NoError(t, err)
	out := decode(t, raw)
	assert.Equal(t, "Home Insurance", out["policy"].(map[string]any)["Type"])
	assert.Equal(t, "Maria Rossi", out["client"].(map[string]any)["fullName"])

	_, err = f.PolicyDetails(ctx, json.RawMessage(`{"client_id":"789012","policy_no":"LIFE-1"}`))
	require.Error(t, err)
	assert.Equal(t, "Policy number 'LIFE-1' not found for client '789012'", err.Error())
}

func TestRegisterThroughExecutor(t *testing.T) {
	reg := tools.NewDefaultRegistry(nil)
	f := NewFunctions(NewStore(""), nil)
	require.NoError(t, f.RegisterBanking(reg))
	require.NoError(t, f.RegisterInsurance(reg))
	require.NoError(t, reg.Validate([]string{LoadByFullName, LoadByID, LoadInsuranceByFullName, LoadInsuranceByID, GetPolicyDetails}))

	res := tools.NewDefaultExecutor(reg, nil).ExecuteOne(context.Background(), llm.ToolCall{
		ID: "c1", Name: LoadByFullName, Arguments: json.RawMessage(`{"client_fullname":"Nobody"}`),
	})
	assert.JSONEq(t, `{"error":"Client with full name 'Nobody' not found in CRM"}`, res.Content())
}

func TestExportSamples(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "crm")

	written, err := ExportSamples(dir, false)
	require.NoError(t, err)
	assert.Equal(t, []string{BankingProfileFile, InsuranceProfileFile}, written)

	f := NewFunctions(NewStore(dir), nil)
	raw, err := f.LoadClientByFullName(context.Background(), json.RawMessage(`{"client_fullname":"Pete Mitchell"}`))
	require.NoError(t, err)
	assert.Equal(t, "success", decode(t, raw)["status"])

	// 已存在的文件保留本地修改
	require.NoError(t, os.WriteFile(filepath.Join(dir, BankingProfileFile), []byte(`{}`), 0o644))
	written, err = ExportSamples(dir, false)
	require.NoError(t, err)
	assert.Empty(t, written)
	data, err := os.ReadFile(filepath.Join(dir, BankingProfileFile))
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))

	written, err = ExportSamples(dir, true)
	require.NoError(t, err)
	assert.Len(t, written, 2)
}
