package pdf

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var ErrMissingPayslipID = errors.New("missing_payslip_id")

// PayslipData holds preformatted values; the renderer does no arithmetic.
type PayslipData struct {
	PayslipID     string
	BatchRef      string
	EmployeeName  string
	EmployeeEmail string
	PeriodStart   string
	PeriodEnd     string
	Status        string
	TotalHours    string
	HourlyRate    string
	GrossPay      string
	Deductions    string
	NetPay        string
	IssuedAt      string
}

func (p *PDFProvider) GeneratePayslip(ctx context.Context, data PayslipData) (io.Reader, error) {
	if data.PayslipID == "" {
		return nil, ErrMissingPayslipID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(15,
		text.NewCol(8, p.companyName, props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "Payslip", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(25,
		col.New(6).Add(
			text.New("Payslip number: "+data.PayslipID, props.Text{Top: 0}),
			text.New("Pay period: "+data.PeriodStart+" - "+data.PeriodEnd, props.Text{Top: 4}),
			text.New("Issued: "+data.IssuedAt, props.Text{Top: 8}),
			text.New("Status: "+data.Status, props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New(data.EmployeeName, props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(data.EmployeeEmail, props.Text{Top: 5, Align: align.Right}),
			text.New(batchLine(data.BatchRef), props.Text{Top: 10, Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Hours", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Rate", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		text.NewCol(6, "Hours worked", props.Text{Size: 9}),
		text.NewCol(2, data.TotalHours, props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, data.HourlyRate, props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, data.GrossPay, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		text.NewCol(6, "Deductions", props.Text{Size: 9}),
		col.New(4),
		text.NewCol(2, "-"+data.Deductions, props.Text{Size: 9, Align: align.Right}),
	)

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Gross pay", props.Text{Size: 9}),
		text.NewCol(2, data.GrossPay, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Net pay", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, data.NetPay, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func batchLine(ref string) string {
	if ref == "" {
		return "Manual payroll"
	}
	return "Pay run: " + ref
}
