package models

import "time"

// District is a reference row in the state/district/block/school hierarchy.
type District struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Block belongs to exactly one district.
type Block struct {
	ID           string    `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	DistrictCode string    `db:"district_code" json:"district_code"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// School is identified nationally by its UDISE code. Block and district codes
// are stored as structural columns so scope filtering never relies on code
// prefix coincidence.
type School struct {
	ID           string    `db:"id" json:"id"`
	UDISECode    string    `db:"udise_code" json:"udise_code"`
	Name         string    `db:"name" json:"name"`
	BlockCode    string    `db:"block_code" json:"block_code"`
	DistrictCode string    `db:"district_code" json:"district_code"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
