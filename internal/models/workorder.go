package models

// WorkOrderLine aggregates demand for one book across every requesting school.
// CalculatedRequisition is the shortfall against central stock and
// ActualRequisition adds the operator-chosen buffer on top of it.
type WorkOrderLine struct {
	BookID                string `db:"book_id" json:"book_id"`
	BookTitle             string `db:"book_title" json:"book_title"`
	Class                 string `db:"class" json:"class"`
	Subject               string `db:"subject" json:"subject"`
	TotalRequisition      int    `db:"total_requisition" json:"total_requisition"`
	TotalReceived         int    `db:"total_received" json:"total_received"`
	CurrentStock          int    `db:"current_stock" json:"current_stock"`
	SchoolCount           int    `db:"school_count" json:"school_count"`
	CalculatedRequisition int    `json:"calculated_requisition"`
	ActualRequisition     int    `json:"actual_requisition"`
}

// WorkOrder is the state tier's procurement snapshot.
type WorkOrder struct {
	AdditionalPercent int             `json:"additional_percent"`
	Lines             []WorkOrderLine `json:"lines"`
	TotalCalculated   int             `json:"total_calculated"`
	TotalActual       int             `json:"total_actual"`
}
