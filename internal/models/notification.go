package models

import "time"

// NotificationTypeMatch tags notifications produced by the matching engine.
const NotificationTypeMatch = "match"

// Factor is one named contribution to a match score.
type Factor struct {
	Score  float64 `json:"score"`
	Detail string  `json:"detail,omitempty"`
}

// Factors maps factor names (category, keywords, location, recency, distance) to their contribution.
type Factors map[string]Factor

// Total returns the unrounded sum of all factor scores.
func (f Factors) Total() float64 {
	var sum float64
	for _, v := range f {
		sum += v.Score
	}
	return sum
}

// NotificationData is the structured payload of a match notification.
// It always references the other item of the matched pair.
type NotificationData struct {
	ItemID     string   `json:"itemId"`
	ItemType   ItemType `json:"itemType"`
	MatchScore int      `json:"matchScore"`
	Factors    Factors  `json:"factors"`
}

// Notification is an in-app message addressed to one user.
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Type      string            `json:"type"`
	Data      *NotificationData `json:"data,omitempty"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"created_at"`
}

// User is the minimal account record needed to address notifications and email.
type User struct {
	ID        string    `json:"id"`
	CampusID  string    `json:"campus_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
