package ledger

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	methodRecordCount = "getRecordCount"
	methodGetRecord   = "getRecord"
	EventDataStored   = "DataStored"
)

//go:embed sensorstorage.abi.json
var sensorStorageABI []byte

type artifact struct {
	Abi json.RawMessage `json:"abi"`
}

// loadABI returns the embedded SensorStorage ABI, or the "abi" section of the
// truffle artifact at path when one is given.
func loadABI(path string) (abi.ABI, error) {
	raw := sensorStorageABI
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return abi.ABI{}, err
		}
		a := artifact{}
		if err := json.Unmarshal(data, &a); err != nil {
			return abi.ABI{}, err
		}
		if len(a.Abi) == 0 {
			return abi.ABI{}, fmt.Errorf("artifact %s has no abi section", path)
		}
		raw = a.Abi
	}
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, err
	}
	for _, m := range []string{methodRecordCount, methodGetRecord} {
		if _, ok := parsed.Methods[m]; !ok {
			return abi.ABI{}, fmt.Errorf("abi is missing method %s", m)
		}
	}
	if _, ok := parsed.Events[EventDataStored]; !ok {
		return abi.ABI{}, fmt.Errorf("abi is missing event %s", EventDataStored)
	}
	return parsed, nil
}
