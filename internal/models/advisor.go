package models

import "time"

// Advisor is the subset of a user-directory record the engine needs.
type Advisor struct {
	ID              string        `json:"id" bson:"_id"`
	Name            string        `json:"name" bson:"name"`
	IsAvailable     bool          `json:"is_available" bson:"isAvailable"`
	Specializations []ServiceType `json:"specializations" bson:"specializations"`
	CreatedAt       time.Time     `json:"created_at" bson:"createdAt"`
}

func (a Advisor) Specializes(st ServiceType) bool {
	for _, s := range a.Specializations {
		if s == st {
			return true
		}
	}
	return false
}
