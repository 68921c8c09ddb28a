package models

import "time"

// SensorReading is a single accepted measurement.
type SensorReading struct {
	ID         uint64    `json:"id"`
	UID        string    `json:"uid"`        // shared by the pending and historical copies
	TankID     uint32    `json:"tankId"`
	DeviceID   uint32    `json:"deviceId"`
	SensorCode string    `json:"sensorCode"` // e.g. "tmp/1"
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	Timestamp  time.Time `json:"timestamp"`
	Synced     bool      `json:"synced"`
}

// ReadingDocument is the remote representation of a reading (no sync flag).
type ReadingDocument struct {
	UID        string    `json:"uid" bson:"_id"`
	ID         uint64    `json:"id" bson:"id"`
	TankID     uint32    `json:"tankId" bson:"tankId"`
	DeviceID   uint32    `json:"deviceId" bson:"deviceId"`
	SensorCode string    `json:"sensorCode" bson:"sensorCode"`
	Value      float64   `json:"value" bson:"value"`
	Unit       string    `json:"unit" bson:"unit"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}

func (r *SensorReading) GetID() uint64 { return r.ID }
func (r *SensorReading) SetID(id uint64) { r.ID = id }
func (r *SensorReading) GetUID() string { return r.UID }
func (r *SensorReading) IsSynced() bool { return r.Synced }
func (r *SensorReading) SetSynced() { r.Synced = true }
func (r *SensorReading) RecordedAt() time.Time { return r.Timestamp }
func (r *SensorReading) Document() ReadingDocument { return readingDocument(*r) }

func readingDocument(r SensorReading) ReadingDocument {
	return ReadingDocument{
		UID:        r.UID,
		ID:         r.ID,
		TankID:     r.TankID,
		DeviceID:   r.DeviceID,
		SensorCode: r.SensorCode,
		Value:      r.Value,
		Unit:       r.Unit,
		Timestamp:  r.Timestamp.UTC(),
	}
}
