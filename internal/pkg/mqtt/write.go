package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/anicoll/sensor-ledger/internal/pkg/model"
	"github.com/anicoll/sensor-ledger/internal/pkg/quality"
)

type entity struct {
	key         string
	name        string
	unit        string
	deviceClass string
}

var sensorEntities = []entity{
	{key: "temperature", name: "Temperature", unit: "°C", deviceClass: "temperature"},
	{key: "humidity", name: "Humidity", unit: "%", deviceClass: "humidity"},
	{key: "tier", name: "Quality"},
	{key: "price_per_kg", name: "Price", unit: "IDR/kg", deviceClass: "monetary"},
}

// Write publishes the latest record of every sensor present in the snapshot as
// retained state, registering the sensor with Home Assistant the first time it is seen.
func (s *service) Write(ctx context.Context, snapshot *model.Snapshot) error {
	if snapshot == nil {
		return nil
	}
	for _, rec := range latestPerSensor(snapshot.Records) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.RegisterSensor(rec.SensorID); err != nil {
			return err
		}
		if err := s.PublishState(rec); err != nil {
			return err
		}
	}
	return nil
}

// RegisterSensor publishes the discovery config of each entity once per sensor.
func (s *service) RegisterSensor(sensorID string) error {
	s.mu.Lock()
	_, exists := s.registered[sensorID]
	s.mu.Unlock()
	if exists {
		return nil
	}

	for _, msg := range s.registerMessages(sensorID) {
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := fmt.Sprintf("%s/config", s.entityTopic(sensorID, msg.ID))
		if err := s.publish(topic, 1, true, payload); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.registered[sensorID] = struct{}{}
	s.mu.Unlock()
	s.logger.Info("registered sensor with home assistant", zap.String("sensor_id", sensorID))
	return nil
}

func (s *service) PublishState(rec model.ReconciledRecord) error {
	payload, err := json.Marshal(sensorState(rec))
	if err != nil {
		return err
	}
	return s.publish(s.StateTopic(rec.SensorID), 0, true, payload)
}

// StateTopic is shared by every entity of a sensor; entities pick their field via value_template.
func (s *service) StateTopic(sensorID string) string {
	return fmt.Sprintf("%s/sensor/%s/state", s.prefix, slug.Make(sensorID))
}

func (s *service) entityTopic(sensorID, uniqueID string) string {
	return fmt.Sprintf("%s/sensor/%s/%s", s.prefix, slug.Make(sensorID), uniqueID)
}

func (s *service) publish(topic string, qos byte, retained bool, payload []byte) error {
	token := s.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(time.Second * 10) {
		return fmt.Errorf("%w: publish to %s", ErrTimeout, topic)
	}
	return token.Error()
}

func (s *service) registerMessages(sensorID string) []model.RegisterMessage {
	sensorSlug := slug.Make(sensorID)
	device := model.RegisterDevice{
		Name:         sensorID,
		Identifiers:  []string{sensorSlug},
		Model:        "SensorStorage",
		Manufacturer: "sensor-ledger",
	}
	msgs := make([]model.RegisterMessage, 0, len(sensorEntities))
	for _, e := range sensorEntities {
		id := fmt.Sprintf("%s_%s", sensorSlug, slug.Make(e.key))
		msgs = append(msgs, model.RegisterMessage{
			Tilda:             fmt.Sprintf("%s/sensor/%s", s.prefix, sensorSlug),
			Name:              fmt.Sprintf("%s %s", sensorID, e.name),
			ID:                id,
			StateTopic:        "~/state",
			ValueTemplate:     fmt.Sprintf("{{ value_json.%s }}", e.key),
			UnitOfMeasurement: e.unit,
			DeviceClass:       e.deviceClass,
			Device:            device,
		})
	}
	return msgs
}

func sensorState(rec model.ReconciledRecord) model.SensorState {
	result := quality.Classify(rec.Reading.Temperature, rec.Reading.Humidity)
	return model.SensorState{
		Temperature:   decimalString(rec.Reading.Temperature),
		Humidity:      decimalString(rec.Reading.Humidity),
		Tier:          string(result.Tier),
		PricePerKg:    result.PricePerKg,
		LedgerIndex:   rec.Index,
		TransactionID: rec.TransactionID,
		Timestamp:     rec.Timestamp,
	}
}

func decimalString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	v := d.Decimal.String()
	return &v
}

// latestPerSensor expects records newest first and keeps that order.
func latestPerSensor(records []model.ReconciledRecord) []model.ReconciledRecord {
	seen := map[string]struct{}{}
	out := make([]model.ReconciledRecord, 0, 1)
	for _, r := range records {
		if _, ok := seen[r.SensorID]; ok {
			continue
		}
		seen[r.SensorID] = struct{}{}
		out = append(out, r)
	}
	return out
}
