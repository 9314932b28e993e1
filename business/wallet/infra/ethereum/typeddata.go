package ethereum

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/fd1az/token-sweeper/business/wallet/domain"
)

const eip712DomainType = "EIP712Domain"

// domainTypes derives the EIP712Domain struct from the populated fields, in
// canonical order.
func domainTypes(d apitypes.TypedDataDomain) []apitypes.Type {
	var fields []apitypes.Type
	if d.Name != "" {
		fields = append(fields, apitypes.Type{Name: "name", Type: "string"})
	}
	if d.Version != "" {
		fields = append(fields, apitypes.Type{Name: "version", Type: "string"})
	}
	if d.ChainId != nil {
		fields = append(fields, apitypes.Type{Name: "chainId", Type: "uint256"})
	}
	if d.VerifyingContract != "" {
		fields = append(fields, apitypes.Type{Name: "verifyingContract", Type: "address"})
	}
	if d.Salt != "" {
		fields = append(fields, apitypes.Type{Name: "salt", Type: "bytes32"})
	}
	return fields
}

// typedDataHash returns the EIP-712 digest keccak256(0x1901 || domainSeparator || structHash).
func typedDataHash(data domain.TypedData) ([]byte, error) {
	types := make(apitypes.Types, len(data.Types)+1)
	for name, fields := range data.Types {
		if name == eip712DomainType {
			continue
		}
		types[name] = fields
	}
	types[eip712DomainType] = domainTypes(data.Domain)

	if _, ok := types[data.PrimaryType]; !ok {
		return nil, fmt.Errorf("primary type %q not declared", data.PrimaryType)
	}

	hash, _, err := apitypes.TypedDataAndHash(apitypes.TypedData{
		Types:       types,
		PrimaryType: data.PrimaryType,
		Domain:      data.Domain,
		Message:     data.Message,
	})
	if err != nil {
		return nil, err
	}
	return hash, nil
}

// signTypedData signs the EIP-712 digest, returning r || s || v with v in {27, 28}.
func signTypedData(key *ecdsa.PrivateKey, data domain.TypedData) ([]byte, error) {
	hash, err := typedDataHash(data)
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27

	return sig, nil
}
