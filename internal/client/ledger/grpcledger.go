package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/dmitrijs2005/lendkeeper/internal/accountid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Ledger methods. Amounts travel as decimal strings so values above 2^53
// survive the Struct encoding.
const (
	MethodAccountBalance = "/ledger.v1.Ledger/AccountBalance"
	MethodBalanceOf      = "/ledger.v1.Ledger/BalanceOf"
	MethodMetadata       = "/ledger.v1.Ledger/Metadata"
)

// Metadata entry keys.
const (
	KeyName     = "icrc1:name"
	KeySymbol   = "icrc1:symbol"
	KeyDecimals = "icrc1:decimals"
)

// Caller issues one call against a canister. *agent.Agent implements it.
type Caller interface {
	Call(ctx context.Context, canisterID, method string, req, reply proto.Message) error
}

// GRPCLedger implements both ledger families over a Caller.
type GRPCLedger struct {
	caller Caller
}

var (
	_ LegacyLedger = (*GRPCLedger)(nil)
	_ TokenLedger  = (*GRPCLedger)(nil)
)

func NewGRPCLedger(caller Caller) *GRPCLedger {
	return &GRPCLedger{caller: caller}
}

func (l *GRPCLedger) AccountBalance(ctx context.Context, ledgerID string, id accountid.ID) (*big.Int, error) {
	req, err := structpb.NewStruct(map[string]any{"account": id.Hex()})
	if err != nil {
		return nil, err
	}
	return l.amount(ctx, ledgerID, MethodAccountBalance, req)
}

func (l *GRPCLedger) BalanceOf(ctx context.Context, ledgerID string, acct Account) (*big.Int, error) {
	args := map[string]any{"owner": acct.Owner.Text()}
	if len(acct.Subaccount) > 0 {
		args["subaccount"] = hex.EncodeToString(acct.Subaccount)
	}
	req, err := structpb.NewStruct(args)
	if err != nil {
		return nil, err
	}
	return l.amount(ctx, ledgerID, MethodBalanceOf, req)
}

func (l *GRPCLedger) amount(ctx context.Context, ledgerID, method string, req *structpb.Struct) (*big.Int, error) {
	reply := &structpb.Struct{}
	if err := l.caller.Call(ctx, ledgerID, method, req, reply); err != nil {
		return nil, err
	}
	return ParseAmount(reply.GetFields()["amount"].GetStringValue())
}

// Metadata reads the name, symbol and decimals entries from the ledger's
// metadata list. Unknown entries are ignored.
func (l *GRPCLedger) Metadata(ctx context.Context, ledgerID string) (TokenMetadata, error) {
	reply := &structpb.Struct{}
	if err := l.caller.Call(ctx, ledgerID, MethodMetadata, &emptypb.Empty{}, reply); err != nil {
		return TokenMetadata{}, err
	}

	var (
		md          TokenMetadata
		hasDecimals bool
	)
	for _, v := range reply.GetFields()["entries"].GetListValue().GetValues() {
		entry := v.GetStructValue().GetFields()
		key := entry["key"].GetStringValue()
		val := entry["value"]

		switch key {
		case KeyName:
			md.Name = val.GetStringValue()
		case KeySymbol:
			md.Symbol = val.GetStringValue()
		case KeyDecimals:
			d, err := decimals(val)
			if err != nil {
				return TokenMetadata{}, err
			}
			md.Decimals = d
			hasDecimals = true
		}
	}

	if !hasDecimals {
		return TokenMetadata{}, fmt.Errorf("%w: missing %s", ErrIncompleteMetadata, KeyDecimals)
	}
	return md, nil
}

func decimals(v *structpb.Value) (uint8, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n < 0 || n > math.MaxUint8 || n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: decimals %v", ErrIncompleteMetadata, n)
		}
		return uint8(n), nil
	case *structpb.Value_StringValue:
		n, err := strconv.ParseUint(k.StringValue, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("%w: decimals %q", ErrIncompleteMetadata, k.StringValue)
		}
		return uint8(n), nil
	default:
		return 0, fmt.Errorf("%w: decimals has unexpected type", ErrIncompleteMetadata)
	}
}
