package models

import "time"

// Book is a reference row for a distributable title. CurrentStock is the
// centrally held quantity; it is decremented only by installment sending.
type Book struct {
	ID           string    `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	Class        string    `db:"class" json:"class"`
	Subject      string    `db:"subject" json:"subject"`
	Medium       string    `db:"medium" json:"medium"`
	CurrentStock int       `db:"current_stock" json:"current_stock"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// BookFilter constrains book listing queries.
type BookFilter struct {
	Class    string
	Subject  string
	Search   string
	Page     int
	PageSize int
}
