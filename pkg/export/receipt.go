package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Receipt carries the pre-formatted fields printed on a payment receipt.
// Money values arrive as fixed-point strings so this package stays free of
// decimal arithmetic.
type Receipt struct {
	ReceiptNo   string
	StudentID   string
	FeeName     string
	Mode        string
	Reference   string
	PaidAt      time.Time
	Amount      string
	TotalPaid   string
	Outstanding string
	ReceivedBy  string
}

// ReceiptRenderer renders payment receipts as PDF documents.
type ReceiptRenderer struct {
	schoolName string
}

// NewReceiptRenderer constructs a renderer with the school letterhead.
func NewReceiptRenderer(schoolName string) *ReceiptRenderer {
	if schoolName == "" {
		schoolName = "Fee Payment Receipt"
	}
	return &ReceiptRenderer{schoolName: schoolName}
}

// Render produces the receipt PDF.
func (r *ReceiptRenderer) Render(receipt Receipt) ([]byte, error) {
	if receipt.ReceiptNo == "" {
		return nil, fmt.Errorf("receipt requires a receipt number")
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 14, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 9, r.schoolName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, "Official Payment Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	rows := [][2]string{
		{"Receipt No", receipt.ReceiptNo},
		{"Student", receipt.StudentID},
		{"Fee", receipt.FeeName},
		{"Paid At", receipt.PaidAt.Format("2006-01-02 15:04")},
		{"Mode", receipt.Mode},
	}
	if receipt.Reference != "" {
		rows = append(rows, [2]string{"Reference", receipt.Reference})
	}
	rows = append(rows,
		[2]string{"Amount Paid", receipt.Amount},
		[2]string{"Total Paid To Date", receipt.TotalPaid},
		[2]string{"Outstanding", receipt.Outstanding},
	)

	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(50, 7, row[0], "B", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, row[1], "B", 1, "", false, 0, "")
	}

	if receipt.ReceivedBy != "" {
		pdf.Ln(8)
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, 6, "Received by: "+receipt.ReceivedBy, "", 1, "R", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}
