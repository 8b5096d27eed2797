package models

// Location is a live GPS entry for a user sharing their position.
// It only ever lives in the registry, never in durable storage.
type Location struct {
	UserID    string  `json:"userId"`
	Name      string  `json:"name"`
	Image     *string `json:"image"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Accuracy  float64 `json:"accuracy"`
	UpdatedAt string  `json:"updatedAt"`
}
