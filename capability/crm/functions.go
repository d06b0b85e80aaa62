package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/moneta/llm"
	"github.com/BaSui01/moneta/llm/tools"
)

// Capability names.
const (
	LoadByFullName          = "load_from_crm_by_client_fullname"
	LoadByID                = "load_from_crm_by_client_id"
	LoadInsuranceByFullName = "load_insurance_client_by_fullname"
	LoadInsuranceByID       = "load_insurance_client_by_id"
	GetPolicyDetails        = "get_client_policy_details"
)

var bankingFields = []string{
	"id", "clientID", "fullName", "firstName", "lastName", "dateOfBirth", "nationality",
	"contactDetails", "address", "financialInformation", "investmentProfile",
	"declared_source_of_wealth", "portfolio",
}

var insuranceFields = []string{
	"id", "clientID", "fullName", "firstName", "lastName", "dateOfBirth", "nationality",
	"contactDetails", "address",
}

// Functions binds the CRM capabilities to a profile store.
type Functions struct {
	store  *Store
	logger *zap.Logger
}

// NewFunctions 创建 CRM 能力函数集合。
func NewFunctions(store *Store, logger *zap.Logger) *Functions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Functions{store: store, logger: logger.With(zap.String("component", "crm"))}
}

type clientArgs struct {
	ClientFullName string `json:"client_fullname"`
	ClientID       string `json:"client_id"`
	PolicyNo       string `json:"policy_no"`
}

func parseArgs(raw json.RawMessage, required ...string) (clientArgs, error) {
	var a clientArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return a, fmt.Errorf("invalid arguments: %v", err)
	}
	for _, name := range required {
		var v string
		switch name {
		case "client_fullname":
			v = a.ClientFullName
		case "client_id":
			v = a.ClientID
		case "policy_no":
			v = a.PolicyNo
		}
		if strings.TrimSpace(v) == "" {
			return a, fmt.Errorf("%s is required", name)
		}
	}
	return a, nil
}

func success(client map[string]json.RawMessage, extra ...any) (json.RawMessage, error) {
	out := map[string]any{"status": "success", "client": client}
	for i := 0; i+1 < len(extra); i += 2 {
		out[extra[i].(string)] = extra[i+1]
	}
	return json.MarshalIndent(out, "", "  ")
}

// LoadClientByFullName looks up the banking client by case-insensitive full name.
func (f *Functions) LoadClientByFullName(_ context.Context, raw json.RawMessage) (json.RawMessage, error) {
	args, err := parseArgs(raw, "client_fullname")
	if err != nil {
		return nil, err
	}
	p, err := f.store.load(BankingProfileFile)
	if err != nil {
		return nil, loadError(err, "CRM")
	}
	if !p.matchesName(args.ClientFullName) {
		return nil, fmt.Errorf("Client with full name '%s' not found in CRM", args.ClientFullName)
	}
	f.logger.Debug("crm client loaded", zap.String("by", "fullname"))
	return success(p.pick(bankingFields...))
}

// LoadClientByID looks up the banking client by clientID or id.
func (f *Functions) LoadClientByID(_ context.Context, raw json.RawMessage) (json.RawMessage, error) {
	args, err := parseArgs(raw, "client_id")
	if err != nil {
		return nil, err
	}
	p, err := f.store.load(BankingProfileFile)
	if err != nil {
		return nil, loadError(err, "CRM")
	}
	if !p.matchesID(args.ClientID) {
		return nil, fmt.Errorf("Client with ID '%s' not found in CRM", args.ClientID)
	}
	f.logger.Debug("crm client loaded", zap.String("by", "id"))
	return success(p.pick(bankingFields...))
}

func (f *Functions) insuranceClient(p profile) map[string]json.RawMessage {
	client := p.pick(insuranceFields...)
	if policies, ok := p["policies"]; ok {
		client["policies"] = policies
	} else {
		client["policies"] = json.RawMessage("[]")
	}
	return client
}

// LoadInsuranceClientByFullName looks up the insurance client with its policies.
func (f *Functions) LoadInsuranceClientByFullName(_ context.Context, raw json.RawMessage) (json.RawMessage, error) {
	args, err := parseArgs(raw, "client_fullname")
	if err != nil {
		return nil, err
	}
	p, err := f.store.load(InsuranceProfileFile)
	if err != nil {
		return nil, loadError(err, "Insurance CRM")
	}
	if !p.matchesName(args.ClientFullName) {
		return nil, fmt.Errorf("Insurance client with full name '%s' not found in CRM", args.ClientFullName)
	}
	return success(f.insuranceClient(p))
}

// LoadInsuranceClientByID looks up the insurance client by clientID or id.
func (f *Functions) LoadInsuranceClientByID(_ context.Context, raw json.RawMessage) (json.RawMessage, error) {
	args, err := parseArgs(raw, "client_id")
	if err != nil {
		return nil, err
	}
	p, err := f.store.load(InsuranceProfileFile)
	if err != nil {
		return nil, loadError(err, "Insurance CRM")
	}
	if !p.matchesID(args.ClientID) {
		return nil, fmt.Errorf("Insurance client with ID '%s' not found in CRM", args.ClientID)
	}
	return success(f.insuranceClient(p))
}

// PolicyDetails returns one policy of a client, matched on PolicyNo.
func (f *Functions) PolicyDetails(_ context.Context, raw json.RawMessage) (json.RawMessage, error) {
	args, err := parseArgs(raw, "client_id", "policy_no")
	if err != nil {
		return nil, err
	}
	p, err := f.store.load(InsuranceProfileFile)
	if err != nil {
		return nil, loadError(err, "Insurance CRM")
	}
	if !p.matchesID(args.ClientID) {
		return nil, fmt.Errorf("Insurance client with ID '%s' not found in CRM", args.ClientID)
	}

	var policies []map[string]json.RawMessage
	if rawPolicies, ok := p["policies"]; ok {
		if err := json.Unmarshal(rawPolicies, &policies); err != nil {
			return nil, loadError(errInvalidJSON, "Insurance CRM")
		}
	}
	for _, policy := range policies {
		var no string
		_ = json.Unmarshal(policy["PolicyNo"], &no)
		if no == args.PolicyNo {
			return success(p.pick("id", "fullName"), "policy", policy)
		}
	}
	return nil, fmt.Errorf("Policy number '%s' not found for client '%s'", args.PolicyNo, args.ClientID)
}

// RegisterBanking registers the banking CRM capabilities.
func (f *Functions) RegisterBanking(reg *tools.DefaultRegistry) error {
	if err := reg.Register(LoadByFullName, f.LoadClientByFullName, tools.ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        LoadByFullName,
			Description: "Load client data from CRM by full name.",
			Parameters:  tools.ObjectSchema(map[string]string{"client_fullname": "The full name of the client to search for"}, "client_fullname"),
		},
	}); err != nil {
		return err
	}
	return reg.Register(LoadByID, f.LoadClientByID, tools.ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        LoadByID,
			Description: "Load client data from CRM by client ID.",
			Parameters:  tools.ObjectSchema(map[string]string{"client_id": "The client ID to search for"}, "client_id"),
		},
	})
}

// RegisterInsurance registers the insurance CRM capabilities.
func (f *Functions) RegisterInsurance(reg *tools.DefaultRegistry) error {
	if err := reg.Register(LoadInsuranceByFullName, f.LoadInsuranceClientByFullName, tools.ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        LoadInsuranceByFullName,
			Description: "Load insurance client data and policies from CRM by full name.",
			Parameters:  tools.ObjectSchema(map[string]string{"client_fullname": "The full name of the client to search for"}, "client_fullname"),
		},
	}); err != nil {
		return err
	}
	if err := reg.Register(LoadInsuranceByID, f.LoadInsuranceClientByID, tools.ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        LoadInsuranceByID,
			Description: "Load insurance client data and policies from CRM by client ID.",
			Parameters:  tools.ObjectSchema(map[string]string{"client_id": "The client ID to search for"}, "client_id"),
		},
	}); err != nil {
		return err
	}
	return reg.Register(GetPolicyDetails, f.PolicyDetails, tools.ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        GetPolicyDetails,
			Description: "Get details for a specific policy of an insurance client.",
			Parameters: tools.ObjectSchema(map[string]string{
				"client_id": "The client ID to search for",
				"policy_no": "The policy number to retrieve details for",
			}, "client_id", "policy_no"),
		},
	})
}
