package models

import "github.com/shopspring/decimal"

// Course is one entry of the static catalog dataset. It is never mutated at runtime.
type Course struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	FullDescription string          `json:"fullDescription"`
	Category        string          `json:"category"`
	Price           decimal.Decimal `json:"price"`
	DemoURL         string          `json:"demoUrl,omitempty"`
	DemoInfo        string          `json:"demoInfo,omitempty"`
}

type CourseDetail struct {
	Course  Course   `json:"course"`
	Related []Course `json:"related"`
}

type PriceEstimate struct {
	CourseID string `json:"courseId"`
	USD      string `json:"usd"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}
