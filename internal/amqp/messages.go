package amqp

import (
	"encoding/json"
	"time"
)

// RecommendationExportMessage announces a freshly generated budget
// recommendation. It carries only identifiers; the worker loads the
// full recommendation from the database before exporting.
type RecommendationExportMessage struct {
	RecommendationID int64     `json:"recommendation_id"`
	UserID           int64     `json:"user_id"`
	Month            string    `json:"month"`
	Timestamp        time.Time `json:"timestamp"`
}

func NewRecommendationExportMessage(recommendationID, userID int64, month string) *RecommendationExportMessage {
	return &RecommendationExportMessage{
		RecommendationID: recommendationID,
		UserID:           userID,
		Month:            month,
		Timestamp:        time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *RecommendationExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecommendationExportMessageFromJSON parses a message from JSON bytes.
func RecommendationExportMessageFromJSON(data []byte) (*RecommendationExportMessage, error) {
	var msg RecommendationExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
