package models

import "time"

// Alert is raised when a reading breaches its threshold rule.
type Alert struct {
	ID         uint64    `json:"id"`
	UID        string    `json:"uid"`
	ReadingUID string    `json:"readingUid"` // reading this alert was derived from
	TankID     uint32    `json:"tankId"`
	DeviceID   uint32    `json:"deviceId"`
	SensorCode string    `json:"sensorCode"`
	Value      float64   `json:"value"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Synced     bool      `json:"synced"`
}

// AlertDocument is the remote representation of an alert.
type AlertDocument struct {
	UID        string    `json:"uid" bson:"_id"`
	ID         uint64    `json:"id" bson:"id"`
	ReadingUID string    `json:"readingUid" bson:"readingUid"`
	TankID     uint32    `json:"tankId" bson:"tankId"`
	DeviceID   uint32    `json:"deviceId" bson:"deviceId"`
	SensorCode string    `json:"sensorCode" bson:"sensorCode"`
	Value      float64   `json:"value" bson:"value"`
	Message    string    `json:"message" bson:"message"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}

func (a *Alert) GetID() uint64 { return a.ID }
func (a *Alert) SetID(id uint64) { a.ID = id }
func (a *Alert) GetUID() string { return a.UID }
func (a *Alert) IsSynced() bool { return a.Synced }
func (a *Alert) SetSynced() { a.Synced = true }
func (a *Alert) RecordedAt() time.Time { return a.Timestamp }

func (a *Alert) Document() AlertDocument {
	return AlertDocument{
		UID:        a.UID,
		ID:         a.ID,
		ReadingUID: a.ReadingUID,
		TankID:     a.TankID,
		DeviceID:   a.DeviceID,
		SensorCode: a.SensorCode,
		Value:      a.Value,
		Message:    a.Message,
		Timestamp:  a.Timestamp.UTC(),
	}
}
