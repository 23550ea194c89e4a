package model

type RegisterDevice struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"identifiers"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
}

// RegisterMessage is a Home Assistant MQTT discovery payload.
type RegisterMessage struct {
	Tilda             string         `json:"~"`
	Name              string         `json:"name"`
	ID                string         `json:"unique_id"`
	StateTopic        string         `json:"state_topic"`
	ValueTemplate     string         `json:"value_template"`
	UnitOfMeasurement string         `json:"unit_of_measurement,omitempty"`
	DeviceClass       string         `json:"device_class,omitempty"`
	Device            RegisterDevice `json:"device"`
}

// SensorState is the retained state document published per sensor.
type SensorState struct {
	Temperature   *string `json:"temperature"`
	Humidity      *string `json:"humidity"`
	Tier          string  `json:"tier"`
	PricePerKg    int64   `json:"price_per_kg"`
	LedgerIndex   uint64  `json:"ledger_index"`
	TransactionID string  `json:"transaction_id"`
	Timestamp     int64   `json:"timestamp"`
}
