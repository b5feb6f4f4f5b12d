package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

type Provider interface {
	GeneratePayslip(ctx context.Context, data PayslipData) (io.Reader, error)
}

type PDFProvider struct {
	companyName string
}

func New() Provider {
	return &PDFProvider{companyName: "Workforce"}
}

// NewWithCompany sets the issuer printed in the payslip header.
func NewWithCompany(name string) Provider {
	if name == "" {
		name = "Workforce"
	}
	return &PDFProvider{companyName: name}
}

var Module = fx.Module("pdf.provider",
	fx.Provide(New),
)
