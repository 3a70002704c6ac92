package store

import (
	"encoding/json"

	"github.com/pkg/errors"

	"txguard/types"
)

func MarshalAccount(account *types.Account) ([]byte, error) {
	if account == nil {
		return nil, errors.New("cannot marshal nil Account")
	}
	data, err := json.Marshal(account)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal Account to JSON")
	}
	return data, nil
}

func UnmarshalAccount(data []byte) (*types.Account, error) {
	if len(data) == 0 {
		return nil, errors.New("cannot unmarshal empty data")
	}
	var account types.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal JSON to Account")
	}
	return &account, nil
}

func MarshalSignatureStatus(status *types.SignatureStatus) ([]byte, error) {
	if status == nil {
		return nil, errors.New("cannot marshal nil SignatureStatus")
	}
	return json.Marshal(status)
}

func UnmarshalSignatureStatus(data []byte) (*types.SignatureStatus, error) {
	if len(data) == 0 {
		return nil, errors.New("cannot unmarshal empty data")
	}
	var status types.SignatureStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal JSON to SignatureStatus")
	}
	return &status, nil
}
